// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/scrobblographus/internal/config"
)

// NewRouter assembles the HTTP routing tree.
//
// Route map:
//
//	GET  /health                      - liveness/readiness probe
//	GET  /metrics                     - Prometheus exposition
//	GET  /api/v1/tracks               - range query over listening history
//	GET  /api/v1/now-playing          - live playback snapshot
//	GET  /api/v1/stats/cache          - local replica statistics
//	GET  /api/v1/reports/{period}     - daily/weekly/monthly report
//	POST /api/v1/sync                 - trigger an incremental sync
//	POST /api/v1/cleanup              - apply retention cleanup
func NewRouter(h *Handlers, cfg *config.ServerConfig) http.Handler {
	m := NewMiddleware(cfg)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(m.CORS())
	r.Use(Metrics)

	// Probes and scrapers stay outside the rate-limited group.
	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(m.SecurityHeaders)
		r.Use(m.RateLimit())

		r.Get("/tracks", h.GetTracks)
		r.Get("/now-playing", h.GetNowPlaying)
		r.Get("/stats/cache", h.GetCacheStats)
		r.Get("/reports/{period}", h.GetReport)
		r.Post("/sync", h.TriggerSync)
		r.Post("/cleanup", h.TriggerCleanup)
		r.Get("/health", h.HealthCheck)
	})

	return r
}
