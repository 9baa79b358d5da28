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

// Cleaner removes history older than the retention window. Implemented by
// cache.Manager.
type Cleaner interface {
	Cleanup(ctx context.Context, daysToKeep int) (int, error)
}

// CleanupService applies retention cleanup on a fixed interval. With
// retentionDays <= 0 the service idles until shutdown so the supervision
// tree keeps a uniform shape whether or not retention is enabled.
type CleanupService struct {
	cleaner       Cleaner
	interval      time.Duration
	retentionDays int
}

// NewCleanupService creates the retention cleanup service.
func NewCleanupService(cleaner Cleaner, interval time.Duration, retentionDays int) *CleanupService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &CleanupService{cleaner: cleaner, interval: interval, retentionDays: retentionDays}
}

// Serve implements suture.Service.
func (c *CleanupService) Serve(ctx context.Context) error {
	if c.retentionDays <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := c.cleaner.Cleanup(ctx, c.retentionDays)
			if err != nil {
				logging.Warn().Err(err).Msg("Retention cleanup failed")
				continue
			}
			if removed > 0 {
				logging.Info().Int("removed", removed).Int("days_kept", c.retentionDays).
					Msg("Retention cleanup completed")
			}
		}
	}
}

// String implements fmt.Stringer; suture uses it in supervision logs.
func (c *CleanupService) String() string {
	return "retention-cleanup"
}
