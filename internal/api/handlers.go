// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

/*
Package api exposes the HTTP surface of Scrobblographus.

All JSON endpoints live under /api/v1 and share the APIResponse envelope.
Reads are served from the local replica with transparent gap reconciliation
and remote fallback; the handlers themselves never talk to Last.fm directly,
everything goes through the cache engine.
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/scrobblographus/internal/cache"
	"github.com/tomtom215/scrobblographus/internal/config"
	"github.com/tomtom215/scrobblographus/internal/logging"
	"github.com/tomtom215/scrobblographus/internal/models"
)

// syncTimeout bounds a sync session triggered over HTTP.
const syncTimeout = 30 * time.Minute

// Engine is the cache engine surface the handlers depend on. Implemented by
// cache.Manager.
type Engine interface {
	SyncNow(ctx context.Context) error
	GetTracks(ctx context.Context, from, to time.Time, limit, page int) (*models.TrackPage, error)
	GetCacheStats(ctx context.Context) (models.CacheStats, error)
	NowPlaying(ctx context.Context) (*models.NowPlayingInfo, error)
	Cleanup(ctx context.Context, daysToKeep int) (int, error)
}

// ReportBuilder aggregates listening reports. Implemented by stats.Reporter.
type ReportBuilder interface {
	BuildReport(ctx context.Context, period models.ReportPeriod) (*models.Report, error)
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	engine  Engine
	reports ReportBuilder
	cfg     *config.Config
	version string
	started time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(engine Engine, reports ReportBuilder, cfg *config.Config, version string) *Handlers {
	return &Handlers{
		engine:  engine,
		reports: reports,
		cfg:     cfg,
		version: version,
		started: time.Now(),
	}
}

// GetTracks serves GET /api/v1/tracks?from=&to=&limit=&page=.
func (h *Handlers) GetTracks(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req, err := parseTracksRequest(r, &h.cfg.API)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	page, err := h.engine.GetTracks(r.Context(), req.From, req.To, req.Limit, req.Page)
	if err != nil {
		if cache.IsRemoteFetchError(err) {
			rw.UpstreamError(err)
			return
		}
		rw.InternalError(err)
		return
	}

	rw.SuccessPaginated(page.Tracks, page.Page, page.Limit, page.Total)
}

// GetCacheStats serves GET /api/v1/stats/cache.
func (h *Handlers) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	stats, err := h.engine.GetCacheStats(r.Context())
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(stats)
}

// GetReport serves GET /api/v1/reports/{period}.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	period := models.ReportPeriod(chi.URLParam(r, "period"))
	switch period {
	case models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly:
	default:
		rw.BadRequest("period must be daily, weekly or monthly")
		return
	}

	report, err := h.reports.BuildReport(r.Context(), period)
	if err != nil {
		if cache.IsRemoteFetchError(err) {
			rw.UpstreamError(err)
			return
		}
		rw.InternalError(err)
		return
	}
	rw.Success(report)
}

// GetNowPlaying serves GET /api/v1/now-playing.
func (h *Handlers) GetNowPlaying(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	info, err := h.engine.NowPlaying(r.Context())
	if err != nil {
		rw.UpstreamError(err)
		return
	}
	rw.Success(info)
}

// TriggerSync serves POST /api/v1/sync. The sync session runs in the
// background; a session already in progress makes this a no-op.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if err := h.engine.SyncNow(ctx); err != nil {
			logging.Error().Err(err).Msg("Triggered sync failed")
		}
	}()

	rw.SuccessWithStatus(http.StatusAccepted, map[string]string{"status": "sync started"})
}

// TriggerCleanup serves POST /api/v1/cleanup?days=N. Without the days
// parameter the configured retention applies; when retention is disabled
// the parameter is required.
func (h *Handlers) TriggerCleanup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req, err := parseCleanupRequest(r, h.cfg.Sync.RetentionDays)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	removed, err := h.engine.Cleanup(r.Context(), req.Days)
	if err != nil {
		rw.InternalError(err)
		return
	}

	rw.Success(map[string]int{"removed": removed, "days_kept": req.Days})
}

// HealthCheck serves GET /health. Degraded state (store unreachable)
// returns 503 so orchestrators can act on it.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	status := models.HealthStatus{
		Status:            "healthy",
		Version:           h.version,
		DatabaseConnected: true,
		Uptime:            time.Since(h.started).Seconds(),
	}

	stats, err := h.engine.GetCacheStats(r.Context())
	if err != nil {
		status.Status = "degraded"
		status.DatabaseConnected = false
		rw.SuccessWithStatus(http.StatusServiceUnavailable, status)
		return
	}
	status.LastSyncTime = stats.LastSync

	rw.Success(status)
}
