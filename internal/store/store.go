// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

// Package store implements the embedded event store backing the scrobble
// cache: deduplicated track history, the sync watermark, and the
// append-only sync attempt log, all in a single DuckDB database file.
//
// Every operation is synchronous and atomic from the caller's view; batch
// upserts run in one transaction so concurrent readers never observe a
// half-committed batch. All I/O failures are wrapped in *StoreError so the
// sync engine can distinguish store faults from remote faults.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/scrobblographus/internal/config"
	"github.com/tomtom215/scrobblographus/internal/logging"
)

// Store wraps the DuckDB connection and provides data access methods.
type Store struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens (creating if necessary) the database at cfg.Path and
// initializes the schema. Pass Path ":memory:" for an ephemeral store.
func New(cfg *config.DatabaseConfig) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	// 0750 per gosec G301.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn, cfg: cfg}

	if err := s.initialize(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Failed to close database after init failure")
		}
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Store opened")
	return s, nil
}

// initialize creates tables and indexes.
func (s *Store) initialize() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := s.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return s.createIndexes(ctx)
}

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// tableCreationQueries returns the table creation SQL statements.
//
// Timestamps are persisted as BIGINT epoch seconds and calendar dates as
// YYYY-MM-DD TEXT for compatibility with the original cache files. The
// (artist, title, played_at) uniqueness constraint is what makes upserts
// idempotent.
func tableCreationQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS tracks_id_seq`,
		`CREATE TABLE IF NOT EXISTS tracks (
			id BIGINT PRIMARY KEY DEFAULT nextval('tracks_id_seq'),
			artist TEXT NOT NULL,
			title TEXT NOT NULL,
			album TEXT,
			artwork_url TEXT,
			track_url TEXT,
			played_at BIGINT NOT NULL,
			is_live BOOLEAN NOT NULL DEFAULT FALSE,
			scrobble_date TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			UNIQUE (artist, title, played_at)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_meta (
			key_name TEXT PRIMARY KEY,
			value_ts BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE SEQUENCE IF NOT EXISTS sync_attempts_id_seq`,
		`CREATE TABLE IF NOT EXISTS sync_attempts (
			id BIGINT PRIMARY KEY DEFAULT nextval('sync_attempts_id_seq'),
			kind TEXT NOT NULL,
			started_at BIGINT NOT NULL,
			finished_at BIGINT,
			tracks_added INTEGER NOT NULL DEFAULT 0,
			remote_calls INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'running',
			error_message TEXT,
			created_at BIGINT NOT NULL
		)`,
	}
}

// createIndexes creates query indexes. Range scans filter on played_at;
// report aggregation buckets by scrobble_date and artist.
func (s *Store) createIndexes(ctx context.Context) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_tracks_played_at ON tracks(played_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_scrobble_date ON tracks(scrobble_date)`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist)`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_date_artist ON tracks(scrobble_date, artist)`,
	}

	for _, idx := range indexes {
		if _, err := s.conn.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Ping checks that the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if s.conn == nil {
		return &StoreError{Op: "ping", Err: fmt.Errorf("database connection is nil")}
	}
	if err := s.conn.PingContext(ctx); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}

// Compact forces a checkpoint so space freed by large deletes is returned
// to the database file. Maintenance only, not correctness-critical.
func (s *Store) Compact(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return &StoreError{Op: "compact", Err: err}
	}
	return nil
}

// Close checkpoints and closes the database connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Compact(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}

	return s.conn.Close()
}
