// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSyncCycleSuccess(t *testing.T) {
	before := testutil.ToFloat64(SyncTracksAdded.WithLabelValues("incremental"))

	RecordSyncCycle("incremental", 2*time.Second, 5, nil)

	after := testutil.ToFloat64(SyncTracksAdded.WithLabelValues("incremental"))
	if after-before != 5 {
		t.Errorf("expected 5 tracks added, got %v", after-before)
	}
	if testutil.ToFloat64(SyncLastSuccess) == 0 {
		t.Error("SyncLastSuccess not set on successful cycle")
	}
}

func TestObserveStoreOpCountsErrors(t *testing.T) {
	before := testutil.ToFloat64(StoreErrors.WithLabelValues("upsert"))

	ObserveStoreOp("upsert", time.Now(), errors.New("boom"))
	ObserveStoreOp("upsert", time.Now(), nil)

	after := testutil.ToFloat64(StoreErrors.WithLabelValues("upsert"))
	if after-before != 1 {
		t.Errorf("expected 1 store error, got %v", after-before)
	}
}

func TestCounterLabels(t *testing.T) {
	// Exercise the label sets once so malformed label cardinality panics in test
	SyncErrors.WithLabelValues("remote").Inc()
	CacheReads.WithLabelValues("remote_fallback").Inc()
	GapReconciliations.WithLabelValues("skipped_too_wide").Inc()
	CircuitBreakerRequests.WithLabelValues("lastfm-api", "rejected").Inc()
	RemoteAPICalls.WithLabelValues("recent_tracks", "success").Inc()
}
