// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

// Package metrics provides Prometheus metrics collection for observability.
//
// Metrics are exposed at the /metrics endpoint in Prometheus text format.
// Collectors cover sync cycles, store operations, remote API calls, the
// read-path cache behaviour, circuit breaker state, and HTTP traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync Cycle Metrics
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of sync cycles in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"}, // "initial", "incremental", "gap-fill"
	)

	SyncTracksAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_tracks_added_total",
			Help: "Total number of tracks upserted during sync cycles",
		},
		[]string{"kind"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of sync errors",
		},
		[]string{"error_type"}, // "remote", "store", "conversion"
	)

	SyncSkippedUnits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_skipped_units_total",
			Help: "Backfill days or gap ranges skipped after a fetch failure",
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of last successful sync",
		},
	)

	SyncInProgressRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_in_progress_rejections_total",
			Help: "Sync requests ignored because a session was already running",
		},
	)

	// Store Metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation"}, // "upsert", "query_range", "count_range", "aggregate", "cleanup"
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Total number of failed store operations",
		},
		[]string{"operation"},
	)

	StoreRowsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_rows_skipped_total",
			Help: "Rows dropped from upsert batches due to per-row conversion failures",
		},
	)

	// Remote API Metrics
	RemoteAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_api_calls_total",
			Help: "Total Last.fm API calls",
		},
		[]string{"method", "status"}, // status: "success", "failure"
	)

	RemoteAPICallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remote_api_call_duration_seconds",
			Help:    "Duration of Last.fm API calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	RemotePageSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remote_page_size",
			Help:    "Number of events returned per remote page",
			Buckets: []float64{0, 1, 10, 50, 100, 200},
		},
	)

	// Read-Path Cache Metrics
	CacheReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_reads_total",
			Help: "Read-path outcomes",
		},
		[]string{"outcome"}, // "local", "remote_fallback"
	)

	GapReconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gap_reconciliations_total",
			Help: "Gap reconciliation outcomes during range queries",
		},
		[]string{"outcome"}, // "filled", "skipped_too_wide", "failed"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordSyncCycle records the standard per-cycle metrics in one call.
func RecordSyncCycle(kind string, duration time.Duration, tracksAdded int, err error) {
	SyncDuration.WithLabelValues(kind).Observe(duration.Seconds())
	SyncTracksAdded.WithLabelValues(kind).Add(float64(tracksAdded))
	if err == nil {
		SyncLastSuccess.SetToCurrentTime()
	}
}

// ObserveStoreOp times a store operation and records its error counter.
func ObserveStoreOp(operation string, start time.Time, err error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(operation).Inc()
	}
}
