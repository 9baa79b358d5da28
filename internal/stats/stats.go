// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

// Package stats computes listening reports from the local replica: top
// tracks, artists, and albums with play counts, plus a per-day scrobble
// trend. Everything is derived from store rows; no remote calls.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/scrobblographus/internal/models"
	"github.com/tomtom215/scrobblographus/internal/timeutil"
)

// topN bounds every ranking in a report.
const topN = 10

// TrackSource yields the events a report aggregates over. Implemented by
// cache.Manager.
type TrackSource interface {
	GetTracksForStats(ctx context.Context, from, to time.Time) ([]models.Track, error)
}

// Reporter builds listening reports over a track source.
type Reporter struct {
	source TrackSource

	// now is replaceable in tests.
	now func() time.Time
}

// NewReporter creates a Reporter over the given source.
func NewReporter(source TrackSource) *Reporter {
	return &Reporter{source: source, now: time.Now}
}

// periodWindow returns the [from, to) window for a report period ending now.
func periodWindow(period models.ReportPeriod, now time.Time) (time.Time, time.Time, error) {
	switch period {
	case models.PeriodDaily:
		return timeutil.AddDays(now, -1), now, nil
	case models.PeriodWeekly:
		return timeutil.AddDays(now, -7), now, nil
	case models.PeriodMonthly:
		return timeutil.AddDays(now, -30), now, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown report period %q", period)
	}
}

// BuildReport aggregates the period's scrobbles into a report.
func (r *Reporter) BuildReport(ctx context.Context, period models.ReportPeriod) (*models.Report, error) {
	from, to, err := periodWindow(period, r.now())
	if err != nil {
		return nil, err
	}

	tracks, err := r.source.GetTracksForStats(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks for %s report: %w", period, err)
	}

	report := &models.Report{
		Period:     period,
		From:       from,
		To:         to,
		TotalPlays: len(tracks),
		TopTracks:  topTracks(tracks),
		TopArtists: topArtists(tracks),
		TopAlbums:  topAlbums(tracks),
		DailyTrend: dailyTrend(tracks, from, to),
	}
	return report, nil
}

// rankCounts turns a count map into a sorted, bounded ranking. Ties break
// alphabetically so output is deterministic.
func rankCounts(counts map[string]*models.RankedEntry) []models.RankedEntry {
	ranked := make([]models.RankedEntry, 0, len(counts))
	for _, e := range counts {
		ranked = append(ranked, *e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].PlayCount != ranked[j].PlayCount {
			return ranked[i].PlayCount > ranked[j].PlayCount
		}
		if ranked[i].Artist != ranked[j].Artist {
			return ranked[i].Artist < ranked[j].Artist
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func topTracks(tracks []models.Track) []models.RankedEntry {
	counts := make(map[string]*models.RankedEntry)
	for i := range tracks {
		t := &tracks[i]
		key := t.Artist + "\x00" + t.Title
		if e, ok := counts[key]; ok {
			e.PlayCount++
			continue
		}
		counts[key] = &models.RankedEntry{Name: t.Title, Artist: t.Artist, PlayCount: 1}
	}
	return rankCounts(counts)
}

func topArtists(tracks []models.Track) []models.RankedEntry {
	counts := make(map[string]*models.RankedEntry)
	for i := range tracks {
		t := &tracks[i]
		if e, ok := counts[t.Artist]; ok {
			e.PlayCount++
			continue
		}
		counts[t.Artist] = &models.RankedEntry{Name: t.Artist, PlayCount: 1}
	}
	return rankCounts(counts)
}

func topAlbums(tracks []models.Track) []models.RankedEntry {
	counts := make(map[string]*models.RankedEntry)
	for i := range tracks {
		t := &tracks[i]
		if t.Album == nil || *t.Album == "" {
			continue
		}
		key := t.Artist + "\x00" + *t.Album
		if e, ok := counts[key]; ok {
			e.PlayCount++
			continue
		}
		counts[key] = &models.RankedEntry{Name: *t.Album, Artist: t.Artist, PlayCount: 1}
	}
	return rankCounts(counts)
}

// dailyTrend buckets plays by scrobble date across the whole window,
// including zero-play days so trend lines have no holes.
func dailyTrend(tracks []models.Track, from, to time.Time) []models.TrendPoint {
	counts := make(map[string]int)
	for i := range tracks {
		date := tracks[i].ScrobbleDate
		if date == "" {
			date = timeutil.DateString(tracks[i].PlayedAt)
		}
		counts[date]++
	}

	var points []models.TrendPoint
	for day := timeutil.StartOfDay(from); day.Before(to); day = timeutil.NextDay(day) {
		date := timeutil.DateString(day)
		points = append(points, models.TrendPoint{Date: date, Scrobbles: counts[date]})
	}
	return points
}
