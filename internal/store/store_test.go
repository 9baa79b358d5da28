// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/scrobblographus/internal/config"
	"github.com/tomtom215/scrobblographus/internal/models"
)

// setupTestStore creates an in-memory store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "256MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close test store: %v", err)
		}
	})
	return s
}

// testTrack builds a minimal valid track played at the given instant.
func testTrack(artist, title string, playedAt time.Time) models.Track {
	return models.Track{
		Artist:   artist,
		Title:    title,
		PlayedAt: playedAt,
	}
}

func TestNewStoreInitializesSchema(t *testing.T) {
	s := setupTestStore(t)

	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	// Schema creation must be idempotent.
	if err := s.initialize(); err != nil {
		t.Fatalf("Re-initializing schema failed: %v", err)
	}
}

func TestCompact(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Compact(context.Background()); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
}

func TestStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &StoreError{Op: "upsert", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("StoreError should unwrap to its cause")
	}
	if !IsStoreError(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsStoreError should see through wrapping")
	}
	if IsStoreError(cause) {
		t.Error("IsStoreError should not match a bare error")
	}
}
