// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

// Package timeutil provides immutable calendar-day arithmetic used by the
// sync engine's day-by-day backfill walk and the store's day bucketing.
//
// All helpers return new time.Time values; none mutate their input. Day
// boundaries are computed in the supplied value's own location so that a
// scrobble at 23:30 local time buckets into the local calendar day, not
// the UTC one.
package timeutil

import "time"

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// StartOfDay returns midnight at the start of t's calendar day, in t's
// location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays returns t shifted by n calendar days. DST transitions are handled
// by the calendar (a day over a spring-forward boundary is still one day).
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// NextDay returns midnight at the start of the day after t.
func NextDay(t time.Time) time.Time {
	return StartOfDay(AddDays(t, 1))
}

// EpochSeconds returns t as integer Unix seconds, the persisted timestamp
// representation.
func EpochSeconds(t time.Time) int64 {
	return t.Unix()
}

// FromEpochSeconds converts persisted Unix seconds back to a local time.
func FromEpochSeconds(s int64) time.Time {
	return time.Unix(s, 0)
}

// DateString formats t's calendar day as YYYY-MM-DD in t's location.
func DateString(t time.Time) string {
	return t.Format(DateLayout)
}

// SpanDays returns the width of [from, to) in days, rounded up. A zero or
// negative span returns 0.
func SpanDays(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// Min returns the earlier of a and b.
func Min(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// Max returns the later of a and b.
func Max(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
