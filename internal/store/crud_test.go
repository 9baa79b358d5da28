// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package store

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/scrobblographus/internal/models"
)

func TestUpsertTracksIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	playedAt := time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC)
	batch := []models.Track{
		testTrack("Boards of Canada", "Roygbiv", playedAt),
		testTrack("Boards of Canada", "Telephasic Workshop", playedAt.Add(5*time.Minute)),
	}

	n, err := s.UpsertTracks(ctx, batch)
	if err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 rows written, got %d", n)
	}

	// Replaying the same batch must not create duplicates.
	if _, err := s.UpsertTracks(ctx, batch); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	count, err := s.CountRange(ctx, playedAt.Add(-time.Hour), playedAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("CountRange failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 rows after replay, got %d", count)
	}
}

func TestUpsertReplacesExistingRow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	playedAt := time.Date(2026, 8, 21, 18, 0, 0, 0, time.UTC)
	track := testTrack("Squarepusher", "Iambic 9 Poetry", playedAt)
	if _, err := s.UpsertTracks(ctx, []models.Track{track}); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	// Same identity triple with richer metadata replaces the row in place.
	album := "Ultravisitor"
	artwork := "https://example.test/ultravisitor.jpg"
	track.Album = &album
	track.ArtworkURL = &artwork
	if _, err := s.UpsertTracks(ctx, []models.Track{track}); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, err := s.QueryRange(ctx, playedAt.Add(-time.Minute), playedAt.Add(time.Minute), 10, 0)
	if err != nil {
		t.Fatalf("QueryRange failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected exactly 1 row after duplicate upsert, got %d", len(got))
	}
	if got[0].Album == nil || *got[0].Album != album {
		t.Errorf("Expected album %q after replace, got %v", album, got[0].Album)
	}
	if got[0].ArtworkURL == nil || *got[0].ArtworkURL != artwork {
		t.Errorf("Expected artwork %q after replace, got %v", artwork, got[0].ArtworkURL)
	}
}

func TestUpsertTracksSkipsInvalidRows(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	playedAt := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	batch := []models.Track{
		testTrack("Autechre", "Bike", playedAt),
		testTrack("", "No Artist", playedAt.Add(time.Minute)),
		testTrack("Autechre", "", playedAt.Add(2*time.Minute)),
		{Artist: "Autechre", Title: "Eutow", NowPlaying: true, PlayedAt: playedAt.Add(3 * time.Minute)},
		testTrack("Autechre", "Drane2", time.Time{}),
	}

	n, err := s.UpsertTracks(ctx, batch)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 valid row written, got %d", n)
	}
}

func TestUpsertEmptyBatch(t *testing.T) {
	s := setupTestStore(t)

	n, err := s.UpsertTracks(context.Background(), nil)
	if err != nil {
		t.Fatalf("Empty upsert failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 rows, got %d", n)
	}
}

func TestUpsertDerivesScrobbleDate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	playedAt := time.Date(2026, 3, 5, 23, 59, 30, 0, time.UTC)
	if _, err := s.UpsertTracks(ctx, []models.Track{testTrack("Burial", "Archangel", playedAt)}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := s.QueryRange(ctx, playedAt.Add(-time.Minute), playedAt.Add(time.Minute), 10, 0)
	if err != nil {
		t.Fatalf("QueryRange failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 track, got %d", len(got))
	}
	if got[0].ScrobbleDate != "2026-03-05" {
		t.Errorf("Expected scrobble_date 2026-03-05, got %q", got[0].ScrobbleDate)
	}
}

func TestQueryRangeOrderAndBounds(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	var batch []models.Track
	for i := 0; i < 5; i++ {
		batch = append(batch, testTrack("Aphex Twin", "Track", base.Add(time.Duration(i)*time.Hour)))
	}
	// Same artist+title needs distinct played_at to survive dedup; vary titles too.
	for i := range batch {
		batch[i].Title = batch[i].Title + string(rune('A'+i))
	}
	if _, err := s.UpsertTracks(ctx, batch); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Half-open range: [base, base+3h) excludes the row at exactly base+3h.
	got, err := s.QueryRange(ctx, base, base.Add(3*time.Hour), 100, 0)
	if err != nil {
		t.Fatalf("QueryRange failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 tracks in [from, to), got %d", len(got))
	}

	// Newest first.
	for i := 1; i < len(got); i++ {
		if got[i].PlayedAt.After(got[i-1].PlayedAt) {
			t.Errorf("Results not ordered newest first at index %d", i)
		}
	}

	// Pagination.
	page, err := s.QueryRange(ctx, base, base.Add(5*time.Hour), 2, 2)
	if err != nil {
		t.Fatalf("Paginated QueryRange failed: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("Expected page of 2, got %d", len(page))
	}
}

func TestQueryRangeEmptyStore(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.QueryRange(context.Background(), time.Unix(0, 0), time.Now(), 10, 0)
	if err != nil {
		t.Fatalf("QueryRange on empty store failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no tracks, got %d", len(got))
	}
}

func TestGetCoverage(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cov, err := s.GetCoverage(ctx)
	if err != nil {
		t.Fatalf("GetCoverage failed: %v", err)
	}
	if cov.Earliest != nil || cov.Latest != nil {
		t.Error("Empty store should have nil coverage bounds")
	}

	earliest := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	latest := time.Date(2026, 8, 25, 22, 0, 0, 0, time.UTC)
	_, err = s.UpsertTracks(ctx, []models.Track{
		testTrack("Four Tet", "Angel Echoes", earliest),
		testTrack("Four Tet", "Sing", latest),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	cov, err = s.GetCoverage(ctx)
	if err != nil {
		t.Fatalf("GetCoverage failed: %v", err)
	}
	if cov.Earliest == nil || !cov.Earliest.Equal(earliest) {
		t.Errorf("Expected earliest %v, got %v", earliest, cov.Earliest)
	}
	if cov.Latest == nil || !cov.Latest.Equal(latest) {
		t.Errorf("Expected latest %v, got %v", latest, cov.Latest)
	}
}

func TestWatermarkRoundTripAndMonotonicity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	wm, err := s.GetWatermark(ctx)
	if err != nil {
		t.Fatalf("GetWatermark failed: %v", err)
	}
	if wm != nil {
		t.Fatal("Fresh store should have no watermark")
	}

	first := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	if err := s.SetWatermark(ctx, first); err != nil {
		t.Fatalf("SetWatermark failed: %v", err)
	}

	wm, err = s.GetWatermark(ctx)
	if err != nil {
		t.Fatalf("GetWatermark failed: %v", err)
	}
	if wm == nil || !wm.Equal(first) {
		t.Fatalf("Expected watermark %v, got %v", first, wm)
	}

	// Moving backwards is a silent no-op.
	if err := s.SetWatermark(ctx, first.Add(-time.Hour)); err != nil {
		t.Fatalf("Backwards SetWatermark returned error: %v", err)
	}
	wm, _ = s.GetWatermark(ctx)
	if wm == nil || !wm.Equal(first) {
		t.Errorf("Watermark moved backwards to %v", wm)
	}

	// Forward advances normally.
	second := first.Add(time.Hour)
	if err := s.SetWatermark(ctx, second); err != nil {
		t.Fatalf("Forward SetWatermark failed: %v", err)
	}
	wm, _ = s.GetWatermark(ctx)
	if wm == nil || !wm.Equal(second) {
		t.Errorf("Expected watermark %v, got %v", second, wm)
	}
}

func TestSyncAttemptLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	id, err := s.RecordSyncAttempt(ctx, models.SyncAttempt{
		Kind:      models.SyncKindIncremental,
		StartedAt: started,
		Status:    models.SyncStatusRunning,
	})
	if err != nil {
		t.Fatalf("RecordSyncAttempt failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("Expected positive attempt id, got %d", id)
	}

	finished := started.Add(30 * time.Second)
	added := 42
	calls := 3
	status := models.SyncStatusSuccess
	err = s.UpdateSyncAttempt(ctx, id, models.SyncAttemptPatch{
		FinishedAt:  &finished,
		TracksAdded: &added,
		RemoteCalls: &calls,
		Status:      &status,
	})
	if err != nil {
		t.Fatalf("UpdateSyncAttempt failed: %v", err)
	}

	got, err := s.GetSyncAttempt(ctx, id)
	if err != nil {
		t.Fatalf("GetSyncAttempt failed: %v", err)
	}
	if got.Status != models.SyncStatusSuccess {
		t.Errorf("Expected status success, got %q", got.Status)
	}
	if got.TracksAdded != 42 || got.RemoteCalls != 3 {
		t.Errorf("Unexpected counters: added=%d calls=%d", got.TracksAdded, got.RemoteCalls)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("Expected finished_at %v, got %v", finished, got.FinishedAt)
	}
	if got.ErrorMessage != nil {
		t.Errorf("Expected nil error message, got %q", *got.ErrorMessage)
	}
}

func TestUpdateSyncAttemptEmptyPatch(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.RecordSyncAttempt(ctx, models.SyncAttempt{
		Kind:      models.SyncKindInitial,
		StartedAt: time.Now(),
		Status:    models.SyncStatusRunning,
	})
	if err != nil {
		t.Fatalf("RecordSyncAttempt failed: %v", err)
	}

	if err := s.UpdateSyncAttempt(ctx, id, models.SyncAttemptPatch{}); err != nil {
		t.Fatalf("Empty patch should be a no-op, got: %v", err)
	}

	got, err := s.GetSyncAttempt(ctx, id)
	if err != nil {
		t.Fatalf("GetSyncAttempt failed: %v", err)
	}
	if got.Status != models.SyncStatusRunning {
		t.Errorf("Empty patch changed status to %q", got.Status)
	}
}

func TestGetTrackStats(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	album1 := "Selected Ambient Works"
	album2 := "Music Has the Right to Children"
	batch := []models.Track{
		{Artist: "Aphex Twin", Title: "Xtal", Album: &album1, PlayedAt: base},
		{Artist: "Aphex Twin", Title: "Tha", Album: &album1, PlayedAt: base.Add(time.Hour)},
		{Artist: "Boards of Canada", Title: "Roygbiv", Album: &album2, PlayedAt: base.Add(2 * time.Hour)},
	}
	if _, err := s.UpsertTracks(ctx, batch); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	stats, err := s.GetTrackStats(ctx)
	if err != nil {
		t.Fatalf("GetTrackStats failed: %v", err)
	}
	if stats.TotalTracks != 3 {
		t.Errorf("Expected 3 tracks, got %d", stats.TotalTracks)
	}
	if stats.UniqueArtists != 2 {
		t.Errorf("Expected 2 unique artists, got %d", stats.UniqueArtists)
	}
	if stats.UniqueAlbums != 2 {
		t.Errorf("Expected 2 unique albums, got %d", stats.UniqueAlbums)
	}
	if stats.Coverage.Earliest == nil || !stats.Coverage.Earliest.Equal(base) {
		t.Errorf("Unexpected earliest: %v", stats.Coverage.Earliest)
	}
}

func TestCleanupOlderThan(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -120)
	recent := time.Now().Add(-time.Hour)
	_, err := s.UpsertTracks(ctx, []models.Track{
		testTrack("Plaid", "Eyen", old),
		testTrack("Plaid", "Ralome", recent),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	deleted, err := s.CleanupOlderThan(ctx, 90)
	if err != nil {
		t.Fatalf("CleanupOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted row, got %d", deleted)
	}

	count, err := s.CountRange(ctx, time.Unix(0, 0), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CountRange failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 surviving row, got %d", count)
	}
}
