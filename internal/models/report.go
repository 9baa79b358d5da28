// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package models

import "time"

// ReportPeriod selects the window of a listening report.
type ReportPeriod string

// Supported report periods.
const (
	PeriodDaily   ReportPeriod = "daily"
	PeriodWeekly  ReportPeriod = "weekly"
	PeriodMonthly ReportPeriod = "monthly"
)

// Valid reports whether p is a known report period.
func (p ReportPeriod) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// RankedEntry is one row of a top-N ranking with its play count.
type RankedEntry struct {
	Name      string `json:"name"`
	Artist    string `json:"artist,omitempty"` // Set for tracks and albums, empty for artist rankings
	PlayCount int    `json:"play_count"`
}

// TrendPoint is the scrobble count for one calendar day.
type TrendPoint struct {
	Date      string `json:"date"` // YYYY-MM-DD
	Scrobbles int    `json:"scrobbles"`
}

// Report is a data-only listening report computed from the local store.
// Chart rendering is out of scope; consumers format this as they see fit.
type Report struct {
	Period      ReportPeriod `json:"period"`
	From        time.Time    `json:"from"`
	To          time.Time    `json:"to"`
	TotalPlays  int          `json:"total_plays"`
	TopTracks   []RankedEntry `json:"top_tracks"`
	TopArtists  []RankedEntry `json:"top_artists"`
	TopAlbums   []RankedEntry `json:"top_albums"`
	DailyTrend  []TrendPoint  `json:"daily_trend"`
}
