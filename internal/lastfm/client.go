// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

/*
client.go - Core Last.fm API Client

This file provides the Client struct and HTTP communication layer for the
Last.fm user.getrecenttracks API, the single remote endpoint this
application depends on.

Client Features:
  - HTTP client with configurable timeout
  - API key authentication via query parameter
  - Fixed-interval request pacing shared across all callers
  - Automatic HTTP 429 handling with exponential backoff
  - JSON response parsing via goccy/go-json
  - Context support for cancellation and timeouts

The page size is capped at 200, the documented maximum for recenttracks.
Requests are paced through a rate.Limiter built from sync.call_delay so
backfill loops, incremental syncs, and gap fills all share one budget.

Related Files:
  - types.go: wire structs and domain conversion
  - circuit_breaker.go: resilience wrapper used by the sync engine
*/

//nolint:staticcheck // File documentation, not package doc
package lastfm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/scrobblographus/internal/config"
	"github.com/tomtom215/scrobblographus/internal/metrics"
	"github.com/tomtom215/scrobblographus/internal/models"
)

// DefaultBaseURL is the public Last.fm API root, used when
// lastfm.base_url is not configured.
const DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024 // 64KB

// SourceClient is the remote listening-history interface. Implemented by
// Client for production use and by fakes in tests.
//
// Thread Safety: all methods are safe for concurrent use.
type SourceClient interface {
	// RecentTracks returns one page of scrobbles with played_at in
	// [from, to], newest first. Page numbering starts at 1.
	RecentTracks(ctx context.Context, from, to time.Time, page int) (*RecentTracksPage, error)
	// NowPlaying returns the live playback snapshot; Playing is false
	// when nothing is scrobbling right now.
	NowPlaying(ctx context.Context) (*models.NowPlayingInfo, error)
	// Ping verifies the API is reachable and credentials are accepted.
	Ping(ctx context.Context) error
}

// Client handles communication with the Last.fm HTTP API.
type Client struct {
	baseURL        string
	apiKey         string
	username       string
	pageSize       int
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates a Last.fm API client. callDelay is the fixed pacing
// between remote calls (sync.call_delay); zero disables pacing.
func NewClient(cfg *config.LastFMConfig, callDelay time.Duration) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	if callDelay > 0 {
		limit = rate.Every(callDelay)
	}

	return &Client{
		baseURL:        baseURL,
		apiKey:         cfg.APIKey,
		username:       cfg.Username,
		pageSize:       cfg.PageSize,
		client:         &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(limit, 1),
		maxRetries:     5,
		retryBaseDelay: 1 * time.Second,
	}
}

// readBodyForError reads at most maxErrorBodySize of the response body for
// error reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// doRequestWithRateLimit performs a GET with pacing and automatic HTTP 429
// backoff (1s, 2s, 4s, 8s, 16s). Backoff waits honour ctx cancellation.
func (c *Client) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Pacing applies to every attempt, retries included.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// makeRequest performs one API call and decodes the JSON payload. Last.fm
// signals application errors with an {"error": N, "message": ...} envelope,
// sometimes on HTTP 200, so the body is sniffed for it before decoding.
func (c *Client) makeRequest(ctx context.Context, method string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	start := time.Now()
	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	metrics.RemoteAPICallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteAPICalls.WithLabelValues(method, "failure").Inc()
		return fmt.Errorf("failed to make %s request: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
	if err != nil {
		metrics.RemoteAPICalls.WithLabelValues(method, "failure").Inc()
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.RemoteAPICalls.WithLabelValues(method, "failure").Inc()
		if apiErr := decodeAPIError(body); apiErr != nil {
			return apiErr
		}
		return fmt.Errorf("%s request failed with status %d: %s", method, resp.StatusCode, string(readBodyForErrorBytes(body)))
	}

	if apiErr := decodeAPIError(body); apiErr != nil {
		metrics.RemoteAPICalls.WithLabelValues(method, "failure").Inc()
		return apiErr
	}

	if err := json.Unmarshal(body, result); err != nil {
		metrics.RemoteAPICalls.WithLabelValues(method, "failure").Inc()
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	metrics.RemoteAPICalls.WithLabelValues(method, "success").Inc()
	return nil
}

// readBodyForErrorBytes truncates an already-read body for error messages.
func readBodyForErrorBytes(body []byte) []byte {
	if len(body) > maxErrorBodySize {
		return append(body[:maxErrorBodySize:maxErrorBodySize], []byte("\n... (truncated)")...)
	}
	return body
}

// decodeAPIError returns a typed error when the body carries the Last.fm
// error envelope, nil otherwise.
func decodeAPIError(body []byte) *APIError {
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	if envelope.Code == 0 {
		return nil
	}
	return &APIError{Code: envelope.Code, Message: envelope.Message}
}

// RecentTracks retrieves one page of scrobbles with played_at in [from, to].
// Last.fm treats both bounds as inclusive epoch seconds. Page numbering
// starts at 1; the live sentinel may appear at the head of any page and is
// included in the returned wire tracks for the caller to filter.
func (c *Client) RecentTracks(ctx context.Context, from, to time.Time, page int) (*RecentTracksPage, error) {
	params := url.Values{}
	params.Set("user", c.username)
	params.Set("limit", strconv.Itoa(c.pageSize))
	params.Set("page", strconv.Itoa(page))
	if !from.IsZero() {
		params.Set("from", strconv.FormatInt(from.Unix(), 10))
	}
	if !to.IsZero() {
		params.Set("to", strconv.FormatInt(to.Unix(), 10))
	}

	var resp recentTracksResponse
	if err := c.makeRequest(ctx, "user.getrecenttracks", params, &resp); err != nil {
		return nil, err
	}

	pageNum, perPage, total, totalPages := parsePageAttr(resp.RecentTracks.Attr)
	metrics.RemotePageSize.Observe(float64(len(resp.RecentTracks.Track)))

	return &RecentTracksPage{
		Tracks:     resp.RecentTracks.Track,
		Page:       pageNum,
		PerPage:    perPage,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// NowPlaying probes the head of the history for the live sentinel.
func (c *Client) NowPlaying(ctx context.Context) (*models.NowPlayingInfo, error) {
	params := url.Values{}
	params.Set("user", c.username)
	params.Set("limit", "1")
	params.Set("page", "1")

	var resp recentTracksResponse
	if err := c.makeRequest(ctx, "user.getrecenttracks", params, &resp); err != nil {
		return nil, err
	}

	for i := range resp.RecentTracks.Track {
		if resp.RecentTracks.Track[i].IsNowPlaying() {
			info := resp.RecentTracks.Track[i].ToNowPlaying()
			return &info, nil
		}
	}
	return &models.NowPlayingInfo{Playing: false}, nil
}

// Ping verifies connectivity and credentials with a minimal history fetch.
func (c *Client) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("user", c.username)
	params.Set("limit", "1")
	params.Set("page", "1")

	var resp recentTracksResponse
	if err := c.makeRequest(ctx, "user.getrecenttracks", params, &resp); err != nil {
		return fmt.Errorf("failed to ping Last.fm: %w", err)
	}
	return nil
}
