// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

// Package config loads and validates application configuration.
//
// Configuration is merged from three sources in increasing priority:
// struct defaults, an optional YAML config file, and environment variables
// with the SCROBBLO_ prefix (double underscore separates nesting levels,
// e.g. SCROBBLO_LASTFM__API_KEY).
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root application configuration.
type Config struct {
	LastFM   LastFMConfig   `koanf:"lastfm"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// LastFMConfig holds Last.fm API connection settings.
//
// Environment Variables:
//   - SCROBBLO_LASTFM__API_KEY: Last.fm API key (required)
//   - SCROBBLO_LASTFM__USERNAME: Last.fm username whose history is mirrored (required)
type LastFMConfig struct {
	APIKey   string        `koanf:"api_key"`
	Username string        `koanf:"username"`
	BaseURL  string        `koanf:"base_url"`
	Timeout  time.Duration `koanf:"timeout"`
	PageSize int           `koanf:"page_size"` // Records per page, capped at the API maximum of 200
}

// DatabaseConfig holds embedded store settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // Number of DuckDB threads (0 = use NumCPU)
}

// SyncConfig holds synchronization engine settings.
type SyncConfig struct {
	BackfillDays     int           `koanf:"backfill_days"`      // Historical window walked on first run
	GapThresholdDays int           `koanf:"gap_threshold_days"` // Widest missing range reconciled at query time
	CallDelay        time.Duration `koanf:"call_delay"`         // Fixed pacing between remote calls
	Interval         time.Duration `koanf:"interval"`           // Periodic incremental sync interval
	CleanupInterval  time.Duration `koanf:"cleanup_interval"`   // Retention cleanup job interval
	RetentionDays    int           `koanf:"retention_days"`     // 0 disables the cleanup job
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// APIConfig holds API pagination settings.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// lastFMPageMax is the Last.fm recenttracks API page size ceiling.
const lastFMPageMax = 200

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateLastFM(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLastFM() error {
	if c.LastFM.APIKey == "" {
		return fmt.Errorf("lastfm.api_key is required (SCROBBLO_LASTFM__API_KEY)")
	}
	if c.LastFM.Username == "" {
		return fmt.Errorf("lastfm.username is required (SCROBBLO_LASTFM__USERNAME)")
	}
	if c.LastFM.BaseURL != "" {
		u, err := url.Parse(c.LastFM.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("lastfm.base_url %q is not a valid URL", c.LastFM.BaseURL)
		}
	}
	if c.LastFM.PageSize <= 0 || c.LastFM.PageSize > lastFMPageMax {
		return fmt.Errorf("lastfm.page_size must be in 1..%d, got %d", lastFMPageMax, c.LastFM.PageSize)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.BackfillDays <= 0 {
		return fmt.Errorf("sync.backfill_days must be positive, got %d", c.Sync.BackfillDays)
	}
	if c.Sync.GapThresholdDays <= 0 {
		return fmt.Errorf("sync.gap_threshold_days must be positive, got %d", c.Sync.GapThresholdDays)
	}
	if c.Sync.CallDelay < 0 {
		return fmt.Errorf("sync.call_delay must not be negative")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}
	if c.Sync.RetentionDays < 0 {
		return fmt.Errorf("sync.retention_days must not be negative, got %d", c.Sync.RetentionDays)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.API.DefaultPageSize <= 0 || c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api page sizes invalid: default=%d max=%d", c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	return nil
}
