// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSyncer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSyncer) SyncNow(context.Context) error {
	f.calls.Add(1)
	return f.err
}

type fakeCleaner struct {
	calls   atomic.Int32
	gotDays atomic.Int32
}

func (f *fakeCleaner) Cleanup(_ context.Context, daysToKeep int) (int, error) {
	f.calls.Add(1)
	f.gotDays.Store(int32(daysToKeep))
	return 1, nil
}

type fakeHTTPServer struct {
	started  chan struct{}
	shutdown atomic.Bool
	serveErr error
	stop     chan struct{}
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{started: make(chan struct{}), stop: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	close(f.started)
	if f.serveErr != nil {
		return f.serveErr
	}
	<-f.stop
	return nil
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdown.Store(true)
	close(f.stop)
	return nil
}

func TestSyncServiceTicks(t *testing.T) {
	syncer := &fakeSyncer{}
	svc := NewSyncService(syncer, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline error, got %v", err)
	}
	if syncer.calls.Load() < 2 {
		t.Errorf("Expected multiple sync ticks, got %d", syncer.calls.Load())
	}
}

func TestSyncServiceSurvivesSyncFailure(t *testing.T) {
	syncer := &fakeSyncer{err: errors.New("remote down")}
	svc := NewSyncService(syncer, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Serve must keep ticking despite failures and only return on cancel.
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline error, got %v", err)
	}
	if syncer.calls.Load() == 0 {
		t.Error("Expected sync attempts despite failures")
	}
}

func TestCleanupServiceTicks(t *testing.T) {
	cleaner := &fakeCleaner{}
	svc := NewCleanupService(cleaner, 10*time.Millisecond, 90)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline error, got %v", err)
	}
	if cleaner.calls.Load() == 0 {
		t.Error("Expected cleanup ticks")
	}
	if cleaner.gotDays.Load() != 90 {
		t.Errorf("Expected retention of 90 days, got %d", cleaner.gotDays.Load())
	}
}

func TestCleanupServiceIdlesWhenRetentionDisabled(t *testing.T) {
	cleaner := &fakeCleaner{}
	svc := NewCleanupService(cleaner, 10*time.Millisecond, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline error, got %v", err)
	}
	if cleaner.calls.Load() != 0 {
		t.Errorf("Expected no cleanup calls with retention disabled, got %d", cleaner.calls.Load())
	}
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	server := newFakeHTTPServer()
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	select {
	case <-server.started:
	case <-time.After(time.Second):
		t.Fatal("Server never started")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if !server.shutdown.Load() {
		t.Error("Shutdown was never called")
	}
}

func TestHTTPServicePropagatesServeError(t *testing.T) {
	server := newFakeHTTPServer()
	server.serveErr = errors.New("listen failed")
	svc := NewHTTPService(server, time.Second)

	if err := svc.Serve(context.Background()); err == nil {
		t.Fatal("Expected listen error to propagate")
	}
}
