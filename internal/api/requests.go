// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/scrobblographus/internal/config"
)

var validate = validator.New()

// tracksRequest is the parsed and validated query of GET /tracks.
type tracksRequest struct {
	From  time.Time `validate:"required"`
	To    time.Time `validate:"required,gtfield=From"`
	Limit int       `validate:"gte=1"`
	Page  int       `validate:"gte=1"`
}

// cleanupRequest is the parsed query of POST /cleanup.
type cleanupRequest struct {
	Days int `validate:"gte=1"`
}

// parseTimeParam accepts RFC 3339 timestamps or Unix epoch seconds.
func parseTimeParam(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: expected RFC 3339 or epoch seconds", value)
}

// defaultTrackWindow is the range served when from/to are omitted.
const defaultTrackWindow = 7 * 24 * time.Hour

// parseTracksRequest extracts the range query with defaults from the API
// config: a trailing 7-day window, the configured default page size, page 1.
// Limit is clamped to api.max_page_size rather than rejected.
func parseTracksRequest(r *http.Request, cfg *config.APIConfig) (tracksRequest, error) {
	now := time.Now().UTC()
	req := tracksRequest{
		From:  now.Add(-defaultTrackWindow),
		To:    now,
		Limit: cfg.DefaultPageSize,
		Page:  1,
	}

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			return req, err
		}
		req.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			return req, err
		}
		req.To = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid limit %q", v)
		}
		req.Limit = n
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid page %q", v)
		}
		req.Page = n
	}

	if req.Limit > cfg.MaxPageSize {
		req.Limit = cfg.MaxPageSize
	}

	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("invalid range query: %w", err)
	}
	return req, nil
}

// parseCleanupRequest extracts the retention override for POST /cleanup,
// falling back to the configured default when days is omitted.
func parseCleanupRequest(r *http.Request, defaultDays int) (cleanupRequest, error) {
	req := cleanupRequest{Days: defaultDays}
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid days %q", v)
		}
		req.Days = n
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("invalid cleanup request: %w", err)
	}
	return req, nil
}
