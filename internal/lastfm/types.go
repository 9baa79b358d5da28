// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package lastfm

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/scrobblographus/internal/models"
	"github.com/tomtom215/scrobblographus/internal/timeutil"
)

// Wire types for the user.getrecenttracks JSON response.
//
// Last.fm wraps plain strings in {"#text": ...} objects and returns numeric
// fields as strings. A page containing exactly one track is serialized as a
// bare object instead of a single-element array, which trackList handles.

// TextField is Last.fm's {"#text": "..."} string wrapper.
type TextField struct {
	Text string `json:"#text"`
}

// ImageField is one entry of the per-track artwork size list.
type ImageField struct {
	Size string `json:"size"`
	URL  string `json:"#text"`
}

// DateField carries the scrobble timestamp as epoch seconds in a string.
// Absent on the now-playing sentinel.
type DateField struct {
	UTS string `json:"uts"`
}

// TrackAttr holds per-track attributes; nowplaying is "true" on the live
// sentinel prepended to page 1.
type TrackAttr struct {
	NowPlaying string `json:"nowplaying"`
}

// WireTrack is one track entry as returned by the Last.fm API.
type WireTrack struct {
	Artist TextField    `json:"artist"`
	Name   string       `json:"name"`
	Album  TextField    `json:"album"`
	URL    string       `json:"url"`
	Images []ImageField `json:"image"`
	Date   *DateField   `json:"date"`
	Attr   *TrackAttr   `json:"@attr"`
}

// trackList unmarshals either a JSON array of tracks or the bare object
// Last.fm emits when the page contains a single track.
type trackList []WireTrack

func (l *trackList) UnmarshalJSON(data []byte) error {
	var many []WireTrack
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one WireTrack
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = trackList{one}
	return nil
}

// pageAttr is the pagination envelope on the recenttracks wrapper.
type pageAttr struct {
	Page       string `json:"page"`
	PerPage    string `json:"perPage"`
	Total      string `json:"total"`
	TotalPages string `json:"totalPages"`
}

// recentTracksResponse is the full user.getrecenttracks payload.
type recentTracksResponse struct {
	RecentTracks struct {
		Track trackList `json:"track"`
		Attr  pageAttr  `json:"@attr"`
	} `json:"recenttracks"`
}

// apiError is the error envelope returned instead of a result payload.
type apiError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

// APIError is a non-success response from the Last.fm API.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lastfm api error %d: %s", e.Code, e.Message)
}

// RecentTracksPage is one decoded page of listening history.
type RecentTracksPage struct {
	Tracks     []WireTrack
	Page       int
	PerPage    int
	TotalCount int
	TotalPages int
}

// IsNowPlaying reports whether this entry is the live sentinel.
func (w *WireTrack) IsNowPlaying() bool {
	return w.Attr != nil && w.Attr.NowPlaying == "true"
}

// ArtworkURL returns the largest non-empty artwork URL, or nil.
// Last.fm orders the image list smallest first.
func (w *WireTrack) ArtworkURL() *string {
	for i := len(w.Images) - 1; i >= 0; i-- {
		if w.Images[i].URL != "" {
			url := w.Images[i].URL
			return &url
		}
	}
	return nil
}

// ToModel converts a historical wire track into the domain representation.
// Returns an error for rows missing identity fields or a parseable
// timestamp; callers decide whether that fails the batch or just the row.
// The live sentinel is rejected here, use ToNowPlaying for it.
func (w *WireTrack) ToModel() (models.Track, error) {
	if w.IsNowPlaying() {
		return models.Track{}, fmt.Errorf("now-playing sentinel has no timestamp")
	}
	if w.Artist.Text == "" || w.Name == "" {
		return models.Track{}, fmt.Errorf("track missing artist or title")
	}
	if w.Date == nil {
		return models.Track{}, fmt.Errorf("track %q missing scrobble date", w.Name)
	}
	uts, err := strconv.ParseInt(w.Date.UTS, 10, 64)
	if err != nil {
		return models.Track{}, fmt.Errorf("track %q has invalid uts %q: %w", w.Name, w.Date.UTS, err)
	}

	playedAt := timeutil.FromEpochSeconds(uts)
	t := models.Track{
		Artist:       w.Artist.Text,
		Title:        w.Name,
		PlayedAt:     playedAt,
		ScrobbleDate: timeutil.DateString(playedAt),
		ArtworkURL:   w.ArtworkURL(),
	}
	if w.Album.Text != "" {
		album := w.Album.Text
		t.Album = &album
	}
	if w.URL != "" {
		url := w.URL
		t.TrackURL = &url
	}
	return t, nil
}

// ToNowPlaying converts the live sentinel into a playback snapshot.
func (w *WireTrack) ToNowPlaying() models.NowPlayingInfo {
	info := models.NowPlayingInfo{
		Artist:     w.Artist.Text,
		Title:      w.Name,
		ArtworkURL: w.ArtworkURL(),
		Playing:    true,
	}
	if w.Album.Text != "" {
		album := w.Album.Text
		info.Album = &album
	}
	return info
}

// parsePageAttr converts the string-typed pagination envelope.
func parsePageAttr(attr pageAttr) (page, perPage, total, totalPages int) {
	page, _ = strconv.Atoi(attr.Page)
	perPage, _ = strconv.Atoi(attr.PerPage)
	total, _ = strconv.Atoi(attr.Total)
	totalPages, _ = strconv.Atoi(attr.TotalPages)
	return
}
