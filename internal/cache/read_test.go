// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/scrobblographus/internal/lastfm"
	"github.com/tomtom215/scrobblographus/internal/models"
)

// failingStore simulates a store outage: every operation returns an error.
type failingStore struct{}

var errStoreDown = errors.New("store unavailable")

func (f *failingStore) UpsertTracks(context.Context, []models.Track) (int, error) {
	return 0, errStoreDown
}
func (f *failingStore) QueryRange(context.Context, time.Time, time.Time, int, int) ([]models.Track, error) {
	return nil, errStoreDown
}
func (f *failingStore) CountRange(context.Context, time.Time, time.Time) (int, error) {
	return 0, errStoreDown
}
func (f *failingStore) QueryForAggregation(context.Context, time.Time, time.Time) ([]models.Track, error) {
	return nil, errStoreDown
}
func (f *failingStore) GetCoverage(context.Context) (models.Coverage, error) {
	return models.Coverage{}, errStoreDown
}
func (f *failingStore) GetWatermark(context.Context) (*time.Time, error) {
	return nil, errStoreDown
}
func (f *failingStore) SetWatermark(context.Context, time.Time) error { return errStoreDown }
func (f *failingStore) RecordSyncAttempt(context.Context, models.SyncAttempt) (int64, error) {
	return 0, errStoreDown
}
func (f *failingStore) UpdateSyncAttempt(context.Context, int64, models.SyncAttemptPatch) error {
	return errStoreDown
}
func (f *failingStore) GetTrackStats(context.Context) (models.CacheStats, error) {
	return models.CacheStats{}, errStoreDown
}
func (f *failingStore) CleanupOlderThan(context.Context, int) (int, error) { return 0, errStoreDown }
func (f *failingStore) Compact(context.Context) error                     { return errStoreDown }
func (f *failingStore) Close() error                                      { return nil }

// seedCoverage upserts one track per day across [first, last] inclusive
// and sets the watermark so reads do not trigger a backfill.
func seedCoverage(t *testing.T, m *Manager, first, last time.Time) {
	t.Helper()
	ctx := context.Background()

	var tracks []models.Track
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		tracks = append(tracks, models.Track{
			Artist:   "Seeded Artist",
			Title:    "Track " + day.Format("2006-01-02"),
			PlayedAt: day,
		})
	}
	if _, err := m.store.UpsertTracks(ctx, tracks); err != nil {
		t.Fatalf("Seed upsert failed: %v", err)
	}
	if err := m.store.SetWatermark(ctx, last); err != nil {
		t.Fatalf("Seed watermark failed: %v", err)
	}
}

func TestGetTracksReconcilesBothGaps(t *testing.T) {
	// Coverage [Jan 10, Jan 20]; request [Jan 5, Jan 25) → the engine
	// fetches [Jan 5, Jan 10) and [Jan 20, Jan 25), each under the 7-day
	// threshold, then serves the merged range locally.
	earliest := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	latest := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)

	source := &fakeSource{}
	source.handler = func(gapFrom, _ time.Time, _ int) (*lastfm.RecentTracksPage, error) {
		if gapFrom.Equal(from) {
			return pageOf(wireTrack("Gap Artist", "Before Earliest", from.Add(6*time.Hour))), nil
		}
		return pageOf(wireTrack("Gap Artist", "After Latest", latest.Add(24*time.Hour))), nil
	}

	m, st := setupManager(t, source, to)
	seedCoverage(t, m, earliest, latest)
	ctx := context.Background()

	page, err := m.GetTracks(ctx, from, to, 100, 1)
	if err != nil {
		t.Fatalf("GetTracks failed: %v", err)
	}

	// 11 seeded days + 2 gap fills.
	if page.Total != 13 {
		t.Errorf("Expected 13 tracks after reconciliation, got %d", page.Total)
	}

	calls := source.callLog()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 gap fetches, got %d: %+v", len(calls), calls)
	}
	if !calls[0].From.Equal(from) || !calls[0].To.Equal(earliest) {
		t.Errorf("Unexpected leading gap fetch: %+v", calls[0])
	}
	if !calls[1].From.Equal(latest) || !calls[1].To.Equal(to) {
		t.Errorf("Unexpected trailing gap fetch: %+v", calls[1])
	}

	// Gap fill is logged as a sync attempt.
	attempt, err := st.GetSyncAttempt(ctx, 1)
	if err != nil {
		t.Fatalf("GetSyncAttempt failed: %v", err)
	}
	if attempt.Kind != models.SyncKindGapFill || attempt.Status != models.SyncStatusSuccess {
		t.Errorf("Unexpected gap-fill attempt: kind=%q status=%q", attempt.Kind, attempt.Status)
	}
}

func TestWideGapIsSkipped(t *testing.T) {
	earliest := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	// 30 days before earliest: far beyond the 7-day threshold.
	from := earliest.AddDate(0, 0, -30)

	source := &fakeSource{}
	m, _ := setupManager(t, source, latest)
	seedCoverage(t, m, earliest, latest)
	ctx := context.Background()

	before, err := m.store.GetCoverage(ctx)
	if err != nil {
		t.Fatalf("GetCoverage failed: %v", err)
	}

	// Upper bound equals coverage latest so only the leading gap exists.
	page, err := m.GetTracks(ctx, from, latest, 100, 1)
	if err != nil {
		t.Fatalf("GetTracks failed: %v", err)
	}
	if page.Total != 9 {
		t.Errorf("Expected the 9 seeded tracks in [from, latest), got %d", page.Total)
	}

	if source.callCount() != 0 {
		t.Errorf("Wide gap must not be fetched, saw %d remote calls", source.callCount())
	}

	after, err := m.store.GetCoverage(ctx)
	if err != nil {
		t.Fatalf("GetCoverage failed: %v", err)
	}
	if !after.Earliest.Equal(*before.Earliest) || !after.Latest.Equal(*before.Latest) {
		t.Error("Coverage changed despite skipped reconciliation")
	}
}

func TestGetTracksFallsBackOnStoreOutage(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	source := &fakeSource{}
	source.handler = func(gapFrom, _ time.Time, _ int) (*lastfm.RecentTracksPage, error) {
		return pageOf(
			wireTrack("Fallback Artist", "One", gapFrom.Add(time.Hour)),
			wireTrack("Fallback Artist", "Two", gapFrom.Add(2*time.Hour)),
		), nil
	}

	m := NewManager(&failingStore{}, source, testConfig())

	page, err := m.GetTracks(context.Background(), from, to, 10, 1)
	if err != nil {
		t.Fatalf("Expected remote fallback, got error: %v", err)
	}
	if page.Total != 2 || len(page.Tracks) != 2 {
		t.Errorf("Expected 2 fallback tracks, got total=%d len=%d", page.Total, len(page.Tracks))
	}
	if page.Tracks[0].Artist != "Fallback Artist" {
		t.Errorf("Unexpected fallback track: %+v", page.Tracks[0])
	}
}

func TestGetTracksForStatsFallsBackOnStoreOutage(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	source := &fakeSource{}
	source.handler = func(gapFrom, _ time.Time, _ int) (*lastfm.RecentTracksPage, error) {
		return pageOf(wireTrack("Fallback Artist", "One", gapFrom.Add(time.Hour))), nil
	}

	m := NewManager(&failingStore{}, source, testConfig())

	tracks, err := m.GetTracksForStats(context.Background(), from, to)
	if err != nil {
		t.Fatalf("Expected remote fallback, got error: %v", err)
	}
	if len(tracks) != 1 {
		t.Errorf("Expected 1 fallback track, got %d", len(tracks))
	}
}

func TestFallbackFailurePropagates(t *testing.T) {
	source := &fakeSource{}
	source.handler = func(_, _ time.Time, _ int) (*lastfm.RecentTracksPage, error) {
		return nil, errors.New("remote down too")
	}

	m := NewManager(&failingStore{}, source, testConfig())

	_, err := m.GetTracks(context.Background(), time.Unix(0, 0), time.Now(), 10, 1)
	if err == nil {
		t.Fatal("Expected error when both store and remote fail")
	}
	if !IsRemoteFetchError(err) {
		t.Errorf("Expected RemoteFetchError, got %T: %v", err, err)
	}
}

func TestGetTracksPagination(t *testing.T) {
	first := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	source := &fakeSource{}
	m, _ := setupManager(t, source, last)
	seedCoverage(t, m, first, last)

	// Request entirely inside coverage: no reconciliation needed. The
	// half-open upper bound excludes the track at exactly last.
	page, err := m.GetTracks(context.Background(), first, last, 3, 2)
	if err != nil {
		t.Fatalf("GetTracks failed: %v", err)
	}
	if page.Total != 9 {
		t.Errorf("Expected total 9, got %d", page.Total)
	}
	if len(page.Tracks) != 3 {
		t.Errorf("Expected page of 3, got %d", len(page.Tracks))
	}
	if page.Page != 2 || page.Limit != 3 {
		t.Errorf("Unexpected page metadata: page=%d limit=%d", page.Page, page.Limit)
	}
	if source.callCount() != 0 {
		t.Errorf("In-coverage read should not call remote, saw %d calls", source.callCount())
	}
}

func TestFindGaps(t *testing.T) {
	jan := func(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }
	earliest, latest := jan(10), jan(20)
	cov := models.Coverage{Earliest: &earliest, Latest: &latest}

	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{"inside coverage", jan(12), jan(18), 0},
		{"before only", jan(5), jan(15), 1},
		{"after only", jan(15), jan(25), 1},
		{"both sides", jan(5), jan(25), 2},
		{"exact bounds", jan(10), jan(20), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findGaps(cov, tt.from, tt.to); len(got) != tt.want {
				t.Errorf("Expected %d gaps, got %d: %+v", tt.want, len(got), got)
			}
		})
	}

	// Empty coverage: the whole request is one gap.
	if got := findGaps(models.Coverage{}, jan(1), jan(5)); len(got) != 1 {
		t.Errorf("Expected whole-range gap on empty coverage, got %+v", got)
	}
}
