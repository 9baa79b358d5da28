// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/scrobblographus/config.yaml",
	"/etc/scrobblographus/config.yml",
}

// ConfigPathEnvVar overrides the config file search path when set.
const ConfigPathEnvVar = "SCROBBLO_CONFIG_PATH"

// envPrefix is the prefix for environment variable overrides.
// Double underscore separates nesting levels: SCROBBLO_LASTFM__API_KEY.
const envPrefix = "SCROBBLO_"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		LastFM: LastFMConfig{
			BaseURL:  "https://ws.audioscrobbler.com/2.0/",
			Timeout:  15 * time.Second,
			PageSize: 200,
		},
		Database: DatabaseConfig{
			Path:      "data/scrobbles.db",
			MaxMemory: "512MB",
			Threads:   0,
		},
		Sync: SyncConfig{
			BackfillDays:     30,
			GapThresholdDays: 7,
			CallDelay:        250 * time.Millisecond,
			Interval:         10 * time.Minute,
			CleanupInterval:  24 * time.Hour,
			RetentionDays:    90,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3857,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom builds the configuration using the given config file path.
// An empty path skips the file layer.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// SCROBBLO_LASTFM__API_KEY -> lastfm.api_key
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// findConfigFile returns the config file to use, or empty when none exists.
func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
