// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package services

import (
	"context"
	"time"

	"github.com/tomtom215/scrobblographus/internal/logging"
)

// Syncer triggers one sync session. Implemented by cache.Manager; a session
// already in progress makes the call a no-op.
type Syncer interface {
	SyncNow(ctx context.Context) error
}

// SyncService runs incremental syncs on a fixed interval until its context
// is canceled. Sync failures are logged, not returned: a transient remote
// outage must not crash-loop the service, the next tick retries anyway.
type SyncService struct {
	syncer   Syncer
	interval time.Duration
}

// NewSyncService creates the periodic sync service.
func NewSyncService(syncer Syncer, interval time.Duration) *SyncService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SyncService{syncer: syncer, interval: interval}
}

// Serve implements suture.Service.
func (s *SyncService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.syncer.SyncNow(ctx); err != nil {
				logging.Warn().Err(err).Msg("Periodic sync failed")
			}
		}
	}
}

// String implements fmt.Stringer; suture uses it in supervision logs.
func (s *SyncService) String() string {
	return "periodic-sync"
}
