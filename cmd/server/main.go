// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

/*
Scrobblographus mirrors a Last.fm listening history into an embedded DuckDB
store and serves it over an HTTP API: range queries, listening reports,
cache statistics, and a live now-playing probe.

On startup the server loads configuration, opens the store, performs the
initial backfill (or an incremental catch-up) in the background, and runs
the periodic sync, retention cleanup, and HTTP server under a suture
supervision tree until SIGINT/SIGTERM.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/scrobblographus/internal/api"
	"github.com/tomtom215/scrobblographus/internal/cache"
	"github.com/tomtom215/scrobblographus/internal/config"
	"github.com/tomtom215/scrobblographus/internal/lastfm"
	"github.com/tomtom215/scrobblographus/internal/logging"
	"github.com/tomtom215/scrobblographus/internal/stats"
	"github.com/tomtom215/scrobblographus/internal/store"
	"github.com/tomtom215/scrobblographus/internal/supervisor"
	"github.com/tomtom215/scrobblographus/internal/supervisor/services"
)

// Build information, injected via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Fatal error")
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (default: auto-discover)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("scrobblographus %s (%s)\n", version, commit)
		return nil
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", version).
		Str("username", cfg.LastFM.Username).
		Str("database", cfg.Database.Path).
		Msg("Starting Scrobblographus")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	client := lastfm.NewClient(&cfg.LastFM, cfg.Sync.CallDelay)
	source := lastfm.NewCircuitBreakerClient(client)

	manager := cache.NewManager(st, source, cfg)
	defer func() {
		if err := manager.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close store")
		}
	}()

	// Backfill can take a while on first run; the API serves (with remote
	// fallback) while it proceeds.
	go func() {
		if err := manager.Initialize(ctx); err != nil && ctx.Err() == nil {
			logging.Error().Err(err).Msg("Initial sync failed")
		}
	}()

	reporter := stats.NewReporter(manager)
	handlers := api.NewHandlers(manager, reporter, cfg, version)
	router := api.NewRouter(handlers, &cfg.Server)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	// Supervision events go through slog via sutureslog.
	slogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	tree := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())
	tree.AddSyncService(services.NewSyncService(manager, cfg.Sync.Interval))
	tree.AddSyncService(services.NewCleanupService(manager, cfg.Sync.CleanupInterval, cfg.Sync.RetentionDays))
	tree.AddAPIService(services.NewHTTPService(httpServer, 10*time.Second))

	logging.Info().Str("addr", httpServer.Addr).Msg("Serving")
	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor exited: %w", err)
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}
