// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package cache

import (
	"context"
	"time"

	"github.com/tomtom215/scrobblographus/internal/logging"
	"github.com/tomtom215/scrobblographus/internal/metrics"
	"github.com/tomtom215/scrobblographus/internal/models"
	"github.com/tomtom215/scrobblographus/internal/timeutil"
)

// gap is one missing sub-range discovered against the store's coverage.
type gap struct {
	from time.Time
	to   time.Time
}

// findGaps computes up to two missing sub-ranges for a requested window:
// before the earliest known event and after the latest. Interior gaps are
// not detected; coverage is assumed contiguous between its bounds.
func findGaps(cov models.Coverage, from, to time.Time) []gap {
	if cov.Earliest == nil || cov.Latest == nil {
		return []gap{{from: from, to: to}}
	}

	var gaps []gap
	if from.Before(*cov.Earliest) {
		gaps = append(gaps, gap{from: from, to: *cov.Earliest})
	}
	if to.After(*cov.Latest) {
		gaps = append(gaps, gap{from: *cov.Latest, to: to})
	}
	return gaps
}

// reconcile fills small missing sub-ranges of [from, to) before a range
// query is served. Sub-ranges wider than the configured threshold are
// skipped with a warning; reconciliation is a small gap filler, not a
// second backfill. Skipped when a sync session is already running.
func (m *Manager) reconcile(ctx context.Context, from, to time.Time) error {
	cov, err := m.store.GetCoverage(ctx)
	if err != nil {
		return err
	}

	gaps := findGaps(cov, from, to)
	if len(gaps) == 0 {
		return nil
	}

	fetchable := gaps[:0:0]
	for _, g := range gaps {
		if span := timeutil.SpanDays(g.from, g.to); span > m.cfg.GapThresholdDays {
			logging.Warn().
				Str("from", timeutil.DateString(g.from)).
				Str("to", timeutil.DateString(g.to)).
				Int("span_days", span).
				Int("threshold_days", m.cfg.GapThresholdDays).
				Msg("Gap too wide to reconcile, skipping")
			metrics.GapReconciliations.WithLabelValues("skipped_too_wide").Inc()
			continue
		}
		fetchable = append(fetchable, g)
	}
	if len(fetchable) == 0 {
		return nil
	}

	if !m.tryAcquire() {
		logging.Debug().Msg("Sync session running, skipping gap reconciliation")
		return nil
	}
	defer m.release()

	return m.fillGaps(ctx, fetchable)
}

// fillGaps fetches and persists each gap as one gap-fill session recorded
// in the attempt log. Caller holds the session token.
func (m *Manager) fillGaps(ctx context.Context, gaps []gap) error {
	started := m.now()
	attemptID, err := m.store.RecordSyncAttempt(ctx, models.SyncAttempt{
		Kind:      models.SyncKindGapFill,
		StartedAt: started,
		Status:    models.SyncStatusRunning,
	})
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to record gap-fill attempt")
		attemptID = 0
	}

	totalAdded := 0
	totalCalls := 0
	var runErr error

	for _, g := range gaps {
		tracks, calls, err := m.fetchRange(ctx, g.from, g.to)
		totalCalls += calls
		if err != nil {
			metrics.GapReconciliations.WithLabelValues("failed").Inc()
			runErr = err
			break
		}

		added, err := m.store.UpsertTracks(ctx, tracks)
		if err != nil {
			metrics.GapReconciliations.WithLabelValues("failed").Inc()
			runErr = err
			break
		}
		totalAdded += added
		metrics.GapReconciliations.WithLabelValues("filled").Inc()
		logging.Info().
			Str("from", timeutil.DateString(g.from)).
			Str("to", timeutil.DateString(g.to)).
			Int("tracks_added", added).
			Msg("Gap reconciled")
	}

	m.finalizeAttempt(ctx, attemptID, totalAdded, totalCalls, runErr)
	metrics.RecordSyncCycle(string(models.SyncKindGapFill), time.Since(started), totalAdded, runErr)
	return runErr
}

// GetTracks answers a paginated range query with gap-aware completeness.
// On any store or reconciliation error it falls back to the remote source
// for exactly [from, to) so callers always get a usable answer.
func (m *Manager) GetTracks(ctx context.Context, from, to time.Time, limit, page int) (*models.TrackPage, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	result, err := m.readLocal(ctx, from, to, limit, offset)
	if err != nil {
		logging.Warn().Err(err).Msg("Local read failed, falling back to remote source")
		return m.fallbackPage(ctx, from, to, limit, page)
	}

	metrics.CacheReads.WithLabelValues("local").Inc()
	result.Page = page
	result.Limit = limit
	return result, nil
}

// readLocal reconciles gaps then serves the query from the store.
func (m *Manager) readLocal(ctx context.Context, from, to time.Time, limit, offset int) (*models.TrackPage, error) {
	if err := m.reconcile(ctx, from, to); err != nil {
		return nil, err
	}

	total, err := m.store.CountRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	tracks, err := m.store.QueryRange(ctx, from, to, limit, offset)
	if err != nil {
		return nil, err
	}

	return &models.TrackPage{Tracks: tracks, Total: total}, nil
}

// fallbackPage serves a range query straight from the remote source. The
// result is never persisted; the next sync cycle owns catching up.
func (m *Manager) fallbackPage(ctx context.Context, from, to time.Time, limit, page int) (*models.TrackPage, error) {
	tracks, _, err := m.fetchRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	metrics.CacheReads.WithLabelValues("remote_fallback").Inc()

	total := len(tracks)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &models.TrackPage{
		Tracks: tracks[start:end],
		Total:  total,
		Page:   page,
		Limit:  limit,
	}, nil
}

// GetTracksForStats returns the full unpaged range for aggregation, with
// the same reconcile-then-fallback behaviour as GetTracks.
func (m *Manager) GetTracksForStats(ctx context.Context, from, to time.Time) ([]models.Track, error) {
	if err := m.reconcile(ctx, from, to); err == nil {
		tracks, qerr := m.store.QueryForAggregation(ctx, from, to)
		if qerr == nil {
			metrics.CacheReads.WithLabelValues("local").Inc()
			return tracks, nil
		}
		logging.Warn().Err(qerr).Msg("Aggregation read failed, falling back to remote source")
	} else {
		logging.Warn().Err(err).Msg("Reconciliation failed, falling back to remote source")
	}

	tracks, _, err := m.fetchRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	metrics.CacheReads.WithLabelValues("remote_fallback").Inc()
	return tracks, nil
}
