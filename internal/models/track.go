// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

// Package models defines data structures shared across the Scrobblographus
// application: cached tracks, sync bookkeeping records, and API responses.
package models

import (
	"time"
)

// Track represents a single scrobble (one play of a track) cached in the
// local store, or the live "now playing" sentinel returned by Last.fm.
//
// Identity: a historical scrobble is uniquely identified by
// (Artist, Title, PlayedAt). Re-ingesting the same triple replaces the
// existing row rather than duplicating it.
//
// The live sentinel (NowPlaying == true) has no PlayedAt on the wire and is
// never persisted as history; it only flows through the read path and the
// now-playing probe.
type Track struct {
	ID         int64      `json:"id,omitempty"`
	Artist     string     `json:"artist"`
	Title      string     `json:"title"`
	Album      *string    `json:"album,omitempty"`
	ArtworkURL *string    `json:"artwork_url,omitempty"`
	TrackURL   *string    `json:"track_url,omitempty"`
	PlayedAt   time.Time  `json:"played_at"`
	NowPlaying bool       `json:"now_playing"`
	// ScrobbleDate is the calendar date of PlayedAt in the local timezone,
	// formatted YYYY-MM-DD. Used for day-bucketed aggregation queries.
	ScrobbleDate string `json:"scrobble_date,omitempty"`
}

// Coverage is the known contiguous data range of the local store, computed
// as min/max played_at over non-live rows. Both fields are nil when the
// store is empty.
type Coverage struct {
	Earliest *time.Time `json:"earliest"`
	Latest   *time.Time `json:"latest"`
}

// Contains reports whether t falls inside the covered range (inclusive).
func (c Coverage) Contains(t time.Time) bool {
	if c.Earliest == nil || c.Latest == nil {
		return false
	}
	return !t.Before(*c.Earliest) && !t.After(*c.Latest)
}

// SyncKind identifies the type of a sync cycle.
type SyncKind string

// Sync cycle kinds recorded in the attempt log.
const (
	SyncKindInitial     SyncKind = "initial"
	SyncKindIncremental SyncKind = "incremental"
	SyncKindGapFill     SyncKind = "gap-fill"
)

// SyncStatus is the terminal (or in-flight) state of a sync attempt.
type SyncStatus string

// Sync attempt states.
const (
	SyncStatusRunning SyncStatus = "running"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncAttempt is one row of the append-only sync attempt log. A row is
// created when a sync cycle starts and patched exactly once on completion.
type SyncAttempt struct {
	ID           int64      `json:"id,omitempty"`
	Kind         SyncKind   `json:"kind"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	TracksAdded  int        `json:"tracks_added"`
	RemoteCalls  int        `json:"remote_calls"`
	Status       SyncStatus `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// SyncAttemptPatch carries the completion update for a running attempt.
// Nil fields are left unchanged.
type SyncAttemptPatch struct {
	FinishedAt   *time.Time
	TracksAdded  *int
	RemoteCalls  *int
	Status       *SyncStatus
	ErrorMessage *string
}

// CacheStats summarises the local replica for the stats endpoint.
type CacheStats struct {
	TotalTracks   int        `json:"total_tracks"`
	UniqueArtists int        `json:"unique_artists"`
	UniqueAlbums  int        `json:"unique_albums"`
	Coverage      Coverage   `json:"coverage"`
	LastSync      *time.Time `json:"last_sync,omitempty"`
}

// TrackPage is a paginated slice of historical tracks plus the total count
// for the requested range.
type TrackPage struct {
	Tracks []Track `json:"tracks"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}

// NowPlayingInfo is the live playback snapshot from the remote source.
// Playing is false when nothing is currently scrobbling.
type NowPlayingInfo struct {
	Artist     string  `json:"artist"`
	Title      string  `json:"title"`
	Album      *string `json:"album,omitempty"`
	ArtworkURL *string `json:"artwork_url,omitempty"`
	Playing    bool    `json:"playing"`
}

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status            string     `json:"status"`
	Version           string     `json:"version"`
	DatabaseConnected bool       `json:"database_connected"`
	LastSyncTime      *time.Time `json:"last_sync_time,omitempty"`
	Uptime            float64    `json:"uptime_seconds"`
}
