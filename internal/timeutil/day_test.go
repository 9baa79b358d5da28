// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package timeutil

import (
	"testing"
	"time"
)

func TestStartOfDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}

	in := time.Date(2025, 3, 14, 23, 30, 12, 500, loc)
	got := StartOfDay(in)

	want := time.Date(2025, 3, 14, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("StartOfDay = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Errorf("StartOfDay changed location to %v", got.Location())
	}
}

func TestStartOfDayDoesNotMutateInput(t *testing.T) {
	in := time.Date(2025, 6, 1, 15, 4, 5, 0, time.UTC)
	copyIn := in
	_ = StartOfDay(in)
	if !in.Equal(copyIn) {
		t.Error("input was mutated")
	}
}

func TestNextDay(t *testing.T) {
	in := time.Date(2025, 12, 31, 18, 0, 0, 0, time.UTC)
	got := NextDay(in)
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextDay = %v, want %v", got, want)
	}
}

func TestSpanDays(t *testing.T) {
	base := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{"exact week", base, base.AddDate(0, 0, 7), 7},
		{"partial day rounds up", base, base.Add(36 * time.Hour), 2},
		{"zero span", base, base, 0},
		{"negative span", base, base.Add(-time.Hour), 0},
		{"one second", base, base.Add(time.Second), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SpanDays(tt.from, tt.to); got != tt.want {
				t.Errorf("SpanDays = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEpochRoundTrip(t *testing.T) {
	in := time.Date(2025, 7, 4, 12, 34, 56, 0, time.UTC)
	out := FromEpochSeconds(EpochSeconds(in))
	if !out.Equal(in) {
		t.Errorf("round trip = %v, want %v", out, in)
	}
}

func TestDateString(t *testing.T) {
	in := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)
	if got := DateString(in); got != "2025-02-03" {
		t.Errorf("DateString = %q, want 2025-02-03", got)
	}
}

func TestMinMax(t *testing.T) {
	a := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)

	if got := Min(a, b); !got.Equal(a) {
		t.Errorf("Min = %v, want %v", got, a)
	}
	if got := Max(a, b); !got.Equal(b) {
		t.Errorf("Max = %v, want %v", got, b)
	}
}
