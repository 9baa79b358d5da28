// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/tomtom215/scrobblographus/internal/logging"
	"github.com/tomtom215/scrobblographus/internal/metrics"
	"github.com/tomtom215/scrobblographus/internal/models"
	"github.com/tomtom215/scrobblographus/internal/timeutil"
)

// watermarkKey is the single-row key in sync_meta holding the instant
// through which the store is known complete.
const watermarkKey = "last_sync"

// UpsertTracks inserts or replaces a batch of historical tracks keyed by
// (artist, title, played_at), all inside one transaction. Rows that fail
// validation (missing identity fields, zero timestamp, live sentinel) are
// skipped and logged without failing the batch; a database error aborts
// the whole batch. Returns the number of rows written.
func (s *Store) UpsertTracks(ctx context.Context, tracks []models.Track) (int, error) {
	start := time.Now()
	n, err := s.upsertTracks(ctx, tracks)
	metrics.ObserveStoreOp("upsert", start, err)
	return n, err
}

func (s *Store) upsertTracks(ctx context.Context, tracks []models.Track) (int, error) {
	if len(tracks) == 0 {
		return 0, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StoreError{Op: "upsert", Err: err}
	}
	defer func() {
		// No-op after a successful Commit.
		_ = tx.Rollback()
	}()

	// tracks carries two uniqueness constraints (id primary key plus the
	// identity triple), so DuckDB needs the conflict target spelled out.
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tracks (
			artist, title, album, artwork_url, track_url,
			played_at, is_live, scrobble_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, FALSE, ?, ?, ?)
		ON CONFLICT (artist, title, played_at) DO UPDATE SET
			album = EXCLUDED.album,
			artwork_url = EXCLUDED.artwork_url,
			track_url = EXCLUDED.track_url,
			scrobble_date = EXCLUDED.scrobble_date,
			updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return 0, &StoreError{Op: "upsert", Err: err}
	}
	defer stmt.Close()

	now := timeutil.EpochSeconds(time.Now())
	inserted := 0

	for i := range tracks {
		t := &tracks[i]
		if reason := validateTrackRow(t); reason != "" {
			logging.Warn().Str("artist", t.Artist).Str("title", t.Title).Str("reason", reason).Msg("Skipping track row")
			metrics.StoreRowsSkipped.Inc()
			continue
		}

		scrobbleDate := t.ScrobbleDate
		if scrobbleDate == "" {
			scrobbleDate = timeutil.DateString(t.PlayedAt)
		}

		// A failed statement invalidates the whole transaction, so exec
		// errors are batch-fatal. Rows the engine is allowed to drop are
		// caught by validateTrackRow before they reach the database.
		_, err := stmt.ExecContext(ctx,
			t.Artist, t.Title, t.Album, t.ArtworkURL, t.TrackURL,
			timeutil.EpochSeconds(t.PlayedAt), scrobbleDate, now, now)
		if err != nil {
			return 0, &StoreError{Op: "upsert", Err: err}
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, &StoreError{Op: "upsert", Err: err}
	}
	return inserted, nil
}

// validateTrackRow returns a non-empty reason when the row must not be
// persisted.
func validateTrackRow(t *models.Track) string {
	switch {
	case t.NowPlaying:
		return "live sentinel is never persisted"
	case strings.TrimSpace(t.Artist) == "":
		return "missing artist"
	case strings.TrimSpace(t.Title) == "":
		return "missing title"
	case t.PlayedAt.IsZero():
		return "missing played_at"
	}
	return ""
}

// QueryRange returns non-live tracks with played_at in [from, to), newest
// first, with limit/offset pagination.
func (s *Store) QueryRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.Track, error) {
	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, artist, title, album, artwork_url, track_url, played_at, scrobble_date
		FROM tracks
		WHERE played_at >= ? AND played_at < ? AND NOT is_live
		ORDER BY played_at DESC
		LIMIT ? OFFSET ?`,
		timeutil.EpochSeconds(from), timeutil.EpochSeconds(to), limit, offset)
	metrics.ObserveStoreOp("query_range", start, err)
	if err != nil {
		return nil, &StoreError{Op: "query_range", Err: err}
	}
	defer rows.Close()

	return scanTracks(rows, "query_range")
}

// CountRange returns the number of non-live tracks with played_at in [from, to).
func (s *Store) CountRange(ctx context.Context, from, to time.Time) (int, error) {
	start := time.Now()
	var count int
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tracks
		WHERE played_at >= ? AND played_at < ? AND NOT is_live`,
		timeutil.EpochSeconds(from), timeutil.EpochSeconds(to)).Scan(&count)
	metrics.ObserveStoreOp("count_range", start, err)
	if err != nil {
		return 0, &StoreError{Op: "count_range", Err: err}
	}
	return count, nil
}

// QueryForAggregation returns all non-live tracks in [from, to) without
// pagination, newest first, for statistics computation.
func (s *Store) QueryForAggregation(ctx context.Context, from, to time.Time) ([]models.Track, error) {
	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, artist, title, album, artwork_url, track_url, played_at, scrobble_date
		FROM tracks
		WHERE played_at >= ? AND played_at < ? AND NOT is_live
		ORDER BY played_at DESC`,
		timeutil.EpochSeconds(from), timeutil.EpochSeconds(to))
	metrics.ObserveStoreOp("aggregate", start, err)
	if err != nil {
		return nil, &StoreError{Op: "aggregate", Err: err}
	}
	defer rows.Close()

	return scanTracks(rows, "aggregate")
}

// scanTracks converts result rows into models.Track values.
func scanTracks(rows *sql.Rows, op string) ([]models.Track, error) {
	var tracks []models.Track
	for rows.Next() {
		var (
			t         models.Track
			playedAt  int64
			album     sql.NullString
			artwork   sql.NullString
			trackURL  sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Artist, &t.Title, &album, &artwork, &trackURL, &playedAt, &t.ScrobbleDate); err != nil {
			return nil, &StoreError{Op: op, Err: err}
		}
		t.PlayedAt = timeutil.FromEpochSeconds(playedAt)
		if album.Valid {
			t.Album = &album.String
		}
		if artwork.Valid {
			t.ArtworkURL = &artwork.String
		}
		if trackURL.Valid {
			t.TrackURL = &trackURL.String
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: op, Err: err}
	}
	return tracks, nil
}

// GetCoverage returns the min/max played_at over non-live tracks. Both
// fields are nil when the store is empty.
func (s *Store) GetCoverage(ctx context.Context) (models.Coverage, error) {
	var earliest, latest sql.NullInt64
	err := s.conn.QueryRowContext(ctx, `
		SELECT MIN(played_at), MAX(played_at) FROM tracks WHERE NOT is_live`).
		Scan(&earliest, &latest)
	if err != nil {
		return models.Coverage{}, &StoreError{Op: "coverage", Err: err}
	}

	var cov models.Coverage
	if earliest.Valid {
		t := timeutil.FromEpochSeconds(earliest.Int64)
		cov.Earliest = &t
	}
	if latest.Valid {
		t := timeutil.FromEpochSeconds(latest.Int64)
		cov.Latest = &t
	}
	return cov, nil
}

// GetWatermark returns the sync watermark, or nil when no sync has
// completed yet.
func (s *Store) GetWatermark(ctx context.Context) (*time.Time, error) {
	var ts int64
	err := s.conn.QueryRowContext(ctx,
		`SELECT value_ts FROM sync_meta WHERE key_name = ?`, watermarkKey).Scan(&ts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "get_watermark", Err: err}
	}
	t := timeutil.FromEpochSeconds(ts)
	return &t, nil
}

// SetWatermark records the instant through which the store is complete.
// The watermark is monotonically non-decreasing; attempts to move it
// backwards are ignored with a warning.
func (s *Store) SetWatermark(ctx context.Context, t time.Time) error {
	current, err := s.GetWatermark(ctx)
	if err != nil {
		return err
	}
	if current != nil && t.Before(*current) {
		logging.Warn().Time("current", *current).Time("requested", t).Msg("Refusing to move watermark backwards")
		return nil
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_meta (key_name, value_ts, updated_at)
		VALUES (?, ?, ?)`,
		watermarkKey, timeutil.EpochSeconds(t), timeutil.EpochSeconds(time.Now()))
	if err != nil {
		return &StoreError{Op: "set_watermark", Err: err}
	}
	return nil
}

// RecordSyncAttempt appends a new attempt row and returns its id.
func (s *Store) RecordSyncAttempt(ctx context.Context, a models.SyncAttempt) (int64, error) {
	var finishedAt *int64
	if a.FinishedAt != nil {
		v := timeutil.EpochSeconds(*a.FinishedAt)
		finishedAt = &v
	}

	var id int64
	err := s.conn.QueryRowContext(ctx, `
		INSERT INTO sync_attempts (
			kind, started_at, finished_at, tracks_added, remote_calls,
			status, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		string(a.Kind), timeutil.EpochSeconds(a.StartedAt), finishedAt,
		a.TracksAdded, a.RemoteCalls, string(a.Status), a.ErrorMessage,
		timeutil.EpochSeconds(time.Now())).Scan(&id)
	if err != nil {
		return 0, &StoreError{Op: "record_attempt", Err: err}
	}
	return id, nil
}

// UpdateSyncAttempt applies the completion patch to a running attempt.
// Nil patch fields are left unchanged.
func (s *Store) UpdateSyncAttempt(ctx context.Context, id int64, patch models.SyncAttemptPatch) error {
	var (
		sets   []string
		params []interface{}
	)

	if patch.FinishedAt != nil {
		sets = append(sets, "finished_at = ?")
		params = append(params, timeutil.EpochSeconds(*patch.FinishedAt))
	}
	if patch.TracksAdded != nil {
		sets = append(sets, "tracks_added = ?")
		params = append(params, *patch.TracksAdded)
	}
	if patch.RemoteCalls != nil {
		sets = append(sets, "remote_calls = ?")
		params = append(params, *patch.RemoteCalls)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		params = append(params, string(*patch.Status))
	}
	if patch.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		params = append(params, *patch.ErrorMessage)
	}

	if len(sets) == 0 {
		return nil
	}

	params = append(params, id)
	query := "UPDATE sync_attempts SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := s.conn.ExecContext(ctx, query, params...); err != nil {
		return &StoreError{Op: "update_attempt", Err: err}
	}
	return nil
}

// GetSyncAttempt returns a single attempt row by id.
func (s *Store) GetSyncAttempt(ctx context.Context, id int64) (*models.SyncAttempt, error) {
	var (
		a          models.SyncAttempt
		kind       string
		status     string
		startedAt  int64
		finishedAt sql.NullInt64
		errMsg     sql.NullString
	)
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, kind, started_at, finished_at, tracks_added, remote_calls, status, error_message
		FROM sync_attempts WHERE id = ?`, id).
		Scan(&a.ID, &kind, &startedAt, &finishedAt, &a.TracksAdded, &a.RemoteCalls, &status, &errMsg)
	if err != nil {
		return nil, &StoreError{Op: "get_attempt", Err: err}
	}

	a.Kind = models.SyncKind(kind)
	a.Status = models.SyncStatus(status)
	a.StartedAt = timeutil.FromEpochSeconds(startedAt)
	if finishedAt.Valid {
		t := timeutil.FromEpochSeconds(finishedAt.Int64)
		a.FinishedAt = &t
	}
	if errMsg.Valid {
		a.ErrorMessage = &errMsg.String
	}
	return &a, nil
}

// GetTrackStats returns replica-wide aggregates for the stats endpoint.
// LastSync is filled in by the engine from the watermark.
func (s *Store) GetTrackStats(ctx context.Context) (models.CacheStats, error) {
	var (
		stats    models.CacheStats
		earliest sql.NullInt64
		latest   sql.NullInt64
	)
	err := s.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT artist),
			COUNT(DISTINCT album),
			MIN(played_at),
			MAX(played_at)
		FROM tracks WHERE NOT is_live`).
		Scan(&stats.TotalTracks, &stats.UniqueArtists, &stats.UniqueAlbums, &earliest, &latest)
	if err != nil {
		return models.CacheStats{}, &StoreError{Op: "stats", Err: err}
	}

	if earliest.Valid {
		t := timeutil.FromEpochSeconds(earliest.Int64)
		stats.Coverage.Earliest = &t
	}
	if latest.Valid {
		t := timeutil.FromEpochSeconds(latest.Int64)
		stats.Coverage.Latest = &t
	}
	return stats, nil
}

// CleanupOlderThan deletes non-live tracks with played_at older than
// now - days. Returns the number of deleted rows.
func (s *Store) CleanupOlderThan(ctx context.Context, days int) (int, error) {
	start := time.Now()
	cutoff := timeutil.EpochSeconds(timeutil.AddDays(time.Now(), -days))

	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM tracks WHERE played_at < ? AND NOT is_live`, cutoff)
	metrics.ObserveStoreOp("cleanup", start, err)
	if err != nil {
		return 0, &StoreError{Op: "cleanup", Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, &StoreError{Op: "cleanup", Err: err}
	}
	return int(affected), nil
}
