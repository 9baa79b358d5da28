// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

/*
manager.go - Sync Engine Orchestration

The Manager owns the local scrobble replica: it decides what time ranges
are missing, fetches them from Last.fm in bounded batches, deduplicates and
persists records, and tracks provenance in the sync attempt log.

Sync session kinds:
  - initial: day-by-day walk of the configured backfill window on first run
  - incremental: watermark-to-now catch-up, run periodically
  - gap-fill: small missing ranges discovered while answering a query

At most one session runs at a time process-wide; a second start request is
a logged no-op. The guard is a single-slot channel token acquired before
the first remote call and released on every exit path.

Remote call pacing lives in the Last.fm client's rate limiter, so backfill
day loops, pagination, and gap fills all draw from one budget.
*/

//nolint:staticcheck // File documentation, not package doc
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/scrobblographus/internal/config"
	"github.com/tomtom215/scrobblographus/internal/lastfm"
	"github.com/tomtom215/scrobblographus/internal/logging"
	"github.com/tomtom215/scrobblographus/internal/metrics"
	"github.com/tomtom215/scrobblographus/internal/models"
	"github.com/tomtom215/scrobblographus/internal/timeutil"
)

// EventStore is the persistence surface the engine depends on.
// Implemented by store.Store; faked in tests to simulate outages.
type EventStore interface {
	UpsertTracks(ctx context.Context, tracks []models.Track) (int, error)
	QueryRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.Track, error)
	CountRange(ctx context.Context, from, to time.Time) (int, error)
	QueryForAggregation(ctx context.Context, from, to time.Time) ([]models.Track, error)
	GetCoverage(ctx context.Context) (models.Coverage, error)
	GetWatermark(ctx context.Context) (*time.Time, error)
	SetWatermark(ctx context.Context, t time.Time) error
	RecordSyncAttempt(ctx context.Context, a models.SyncAttempt) (int64, error)
	UpdateSyncAttempt(ctx context.Context, id int64, patch models.SyncAttemptPatch) error
	GetTrackStats(ctx context.Context) (models.CacheStats, error)
	CleanupOlderThan(ctx context.Context, days int) (int, error)
	Compact(ctx context.Context) error
	Close() error
}

// Manager is the sync engine. Safe for concurrent use: range queries may
// proceed while a sync session runs.
type Manager struct {
	store    EventStore
	source   lastfm.SourceClient
	cfg      *config.SyncConfig
	pageSize int

	// sessionSlot holds the single sync session token.
	sessionSlot chan struct{}

	// now is replaceable in tests.
	now func() time.Time
}

// NewManager creates a sync engine over the given store and remote source.
func NewManager(st EventStore, source lastfm.SourceClient, cfg *config.Config) *Manager {
	return &Manager{
		store:       st,
		source:      source,
		cfg:         &cfg.Sync,
		pageSize:    cfg.LastFM.PageSize,
		sessionSlot: make(chan struct{}, 1),
		now:         time.Now,
	}
}

// tryAcquire takes the session token without blocking.
func (m *Manager) tryAcquire() bool {
	select {
	case m.sessionSlot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (m *Manager) release() {
	<-m.sessionSlot
}

// Initialize brings the replica up to date on startup: a full backfill
// when the store has never synced, an incremental catch-up otherwise.
func (m *Manager) Initialize(ctx context.Context) error {
	wm, err := m.store.GetWatermark(ctx)
	if err != nil {
		return err
	}
	if wm == nil {
		logging.Info().Int("backfill_days", m.cfg.BackfillDays).Msg("Empty store, starting initial backfill")
		return m.runSession(ctx, models.SyncKindInitial, m.backfill)
	}
	logging.Info().Time("watermark", *wm).Msg("Catching up from watermark")
	return m.runSession(ctx, models.SyncKindIncremental, m.incremental)
}

// SyncNow runs one incremental sync session. Degrades to initial backfill
// when no watermark exists yet. A no-op when a session is already running.
func (m *Manager) SyncNow(ctx context.Context) error {
	wm, err := m.store.GetWatermark(ctx)
	if err != nil {
		return err
	}
	if wm == nil {
		return m.runSession(ctx, models.SyncKindInitial, m.backfill)
	}
	return m.runSession(ctx, models.SyncKindIncremental, m.incremental)
}

// sessionFunc is one sync cycle body, returning tracks added and remote
// calls made alongside the terminal error.
type sessionFunc func(ctx context.Context) (added, calls int, err error)

// runSession wraps a cycle body with the at-most-one-session guard, the
// attempt log, and cycle metrics. Returning nil on a busy guard keeps the
// running session authoritative.
func (m *Manager) runSession(ctx context.Context, kind models.SyncKind, fn sessionFunc) error {
	if !m.tryAcquire() {
		metrics.SyncInProgressRejections.Inc()
		logging.Info().Str("kind", string(kind)).Msg("Sync already running, ignoring request")
		return nil
	}
	defer m.release()

	started := m.now()
	attemptID, err := m.store.RecordSyncAttempt(ctx, models.SyncAttempt{
		Kind:      kind,
		StartedAt: started,
		Status:    models.SyncStatusRunning,
	})
	if err != nil {
		// The attempt log is provenance, not a precondition.
		logging.Warn().Err(err).Msg("Failed to record sync attempt")
		attemptID = 0
	}

	added, calls, runErr := fn(ctx)
	m.finalizeAttempt(ctx, attemptID, added, calls, runErr)
	metrics.RecordSyncCycle(string(kind), time.Since(started), added, runErr)

	if runErr != nil {
		logging.Error().Err(runErr).Str("kind", string(kind)).Int("tracks_added", added).Msg("Sync session failed")
		return runErr
	}
	logging.Info().Str("kind", string(kind)).Int("tracks_added", added).Int("remote_calls", calls).Msg("Sync session complete")
	return nil
}

// finalizeAttempt patches the running attempt row exactly once.
func (m *Manager) finalizeAttempt(ctx context.Context, id int64, added, calls int, runErr error) {
	if id == 0 {
		return
	}

	finished := m.now()
	status := models.SyncStatusSuccess
	if runErr != nil {
		status = models.SyncStatusFailed
	}
	patch := models.SyncAttemptPatch{
		FinishedAt:  &finished,
		TracksAdded: &added,
		RemoteCalls: &calls,
		Status:      &status,
	}
	if runErr != nil {
		msg := runErr.Error()
		patch.ErrorMessage = &msg
	}

	if err := m.store.UpdateSyncAttempt(ctx, id, patch); err != nil {
		logging.Warn().Err(err).Int64("attempt_id", id).Msg("Failed to finalize sync attempt")
	}
}

// backfill walks the configured historical window day by day, oldest to
// newest. A failed day is skipped, not fatal; a store failure ends the
// cycle. The watermark advances to "now" only after the walk completes.
func (m *Manager) backfill(ctx context.Context) (int, int, error) {
	now := m.now()
	start := timeutil.StartOfDay(timeutil.AddDays(now, -m.cfg.BackfillDays))

	totalAdded := 0
	totalCalls := 0
	skippedDays := 0

	for day := start; day.Before(now); day = timeutil.NextDay(day) {
		dayEnd := timeutil.Min(timeutil.NextDay(day), now)

		tracks, calls, err := m.fetchRange(ctx, day, dayEnd)
		totalCalls += calls
		if err != nil {
			logging.Warn().Err(err).Str("day", timeutil.DateString(day)).Msg("Backfill day failed, skipping")
			metrics.SyncErrors.WithLabelValues("remote").Inc()
			metrics.SyncSkippedUnits.Inc()
			skippedDays++
			continue
		}

		n, err := m.store.UpsertTracks(ctx, tracks)
		if err != nil {
			metrics.SyncErrors.WithLabelValues("store").Inc()
			return totalAdded, totalCalls, err
		}
		totalAdded += n
	}

	if skippedDays > 0 {
		logging.Warn().Int("skipped_days", skippedDays).Msg("Backfill finished with skipped days")
	}

	if err := m.store.SetWatermark(ctx, now); err != nil {
		metrics.SyncErrors.WithLabelValues("store").Inc()
		return totalAdded, totalCalls, err
	}
	return totalAdded, totalCalls, nil
}

// incremental fetches everything from the watermark to "now" in one
// logical request and advances the watermark.
func (m *Manager) incremental(ctx context.Context) (int, int, error) {
	wm, err := m.store.GetWatermark(ctx)
	if err != nil {
		metrics.SyncErrors.WithLabelValues("store").Inc()
		return 0, 0, err
	}
	if wm == nil {
		return m.backfill(ctx)
	}

	now := m.now()
	tracks, calls, err := m.fetchRange(ctx, *wm, now)
	if err != nil {
		metrics.SyncErrors.WithLabelValues("remote").Inc()
		return 0, calls, err
	}

	added, err := m.store.UpsertTracks(ctx, tracks)
	if err != nil {
		metrics.SyncErrors.WithLabelValues("store").Inc()
		return 0, calls, err
	}

	if err := m.store.SetWatermark(ctx, now); err != nil {
		metrics.SyncErrors.WithLabelValues("store").Inc()
		return added, calls, err
	}
	return added, calls, nil
}

// fetchRange pulls every page of [from, to) from the remote source,
// converts rows to the domain shape, and filters the live sentinel.
// Malformed rows are skipped and counted; pagination stops when a page
// comes back short of the page size.
func (m *Manager) fetchRange(ctx context.Context, from, to time.Time) ([]models.Track, int, error) {
	var out []models.Track
	calls := 0

	for page := 1; ; page++ {
		p, err := m.source.RecentTracks(ctx, from, to, page)
		calls++
		if err != nil {
			return nil, calls, &RemoteFetchError{From: from, To: to, Err: err}
		}

		for i := range p.Tracks {
			w := &p.Tracks[i]
			if w.IsNowPlaying() {
				continue
			}
			track, err := w.ToModel()
			if err != nil {
				convErr := &ConversionError{Artist: w.Artist.Text, Title: w.Name, Err: err}
				logging.Warn().Err(convErr).Msg("Skipping malformed remote track")
				metrics.SyncErrors.WithLabelValues("conversion").Inc()
				continue
			}
			out = append(out, track)
		}

		if len(p.Tracks) < m.pageSize {
			break
		}
		if p.TotalPages > 0 && page >= p.TotalPages {
			break
		}
	}

	return out, calls, nil
}

// GetCacheStats summarises the local replica.
func (m *Manager) GetCacheStats(ctx context.Context) (models.CacheStats, error) {
	stats, err := m.store.GetTrackStats(ctx)
	if err != nil {
		return models.CacheStats{}, err
	}
	wm, err := m.store.GetWatermark(ctx)
	if err != nil {
		return models.CacheStats{}, err
	}
	stats.LastSync = wm
	return stats, nil
}

// NowPlaying probes the remote source for the live playback snapshot.
// The sentinel never touches the store.
func (m *Manager) NowPlaying(ctx context.Context) (*models.NowPlayingInfo, error) {
	info, err := m.source.NowPlaying(ctx)
	if err != nil {
		return nil, &RemoteFetchError{Err: err}
	}
	return info, nil
}

// Cleanup deletes tracks older than daysToKeep and compacts the store.
// daysToKeep <= 0 disables deletion.
func (m *Manager) Cleanup(ctx context.Context, daysToKeep int) (int, error) {
	if daysToKeep <= 0 {
		return 0, nil
	}

	deleted, err := m.store.CleanupOlderThan(ctx, daysToKeep)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logging.Info().Int("deleted", deleted).Int("retention_days", daysToKeep).Msg("Retention cleanup complete")
		if err := m.store.Compact(ctx); err != nil {
			logging.Warn().Err(err).Msg("Store compaction failed after cleanup")
		}
	}
	return deleted, nil
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}
