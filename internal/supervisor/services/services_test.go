// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/labnotify/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*HubService)(nil)
	_ suture.Service = (*RealtimeService)(nil)
	_ suture.Service = (*PublisherService)(nil)
)

// serveAndCancel runs svc, cancels after started reports true and returns
// Serve's result.
func serveAndCancel(t *testing.T, svc suture.Service, started func() bool) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !started() {
		if time.Now().After(deadline) {
			t.Fatal("service did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
		return nil
	}
}

// ========================================
// HTTPServerService
// ========================================

type mockHTTPServer struct {
	listenErr error
	started   atomic.Bool
	shutdowns atomic.Int32
	stopCh    chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{stopCh: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	m.started.Store(true)
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(ctx context.Context) error {
	m.shutdowns.Add(1)
	close(m.stopCh)
	return nil
}

func TestHTTPServerService_GracefulShutdown(t *testing.T) {
	server := newMockHTTPServer()
	svc := NewHTTPServerService(server, "127.0.0.1:8787", time.Second)

	err := serveAndCancel(t, svc, server.started.Load)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
	if server.shutdowns.Load() != 1 {
		t.Errorf("Shutdown calls = %d, want 1", server.shutdowns.Load())
	}
	if svc.String() != "http-server" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestHTTPServerService_ListenError(t *testing.T) {
	server := newMockHTTPServer()
	server.listenErr = errors.New("address already in use")
	svc := NewHTTPServerService(server, ":8787", 0)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, server.listenErr) {
		t.Errorf("Serve = %v, want wrapped listen error", err)
	}
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("default shutdownTimeout = %v", svc.shutdownTimeout)
	}
}

// ========================================
// HubService
// ========================================

type mockHub struct {
	runs atomic.Int32
}

func (m *mockHub) RunWithContext(ctx context.Context) error {
	m.runs.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestHubService(t *testing.T) {
	hub := &mockHub{}
	svc := NewHubService(hub)

	err := serveAndCancel(t, svc, func() bool { return hub.runs.Load() == 1 })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
	if svc.String() != "websocket-hub" {
		t.Errorf("String() = %q", svc.String())
	}
}

// ========================================
// RealtimeService
// ========================================

type mockStream struct {
	startErr error
	starts   atomic.Int32
	stops    atomic.Int32
	syncs    atomic.Int32
	syncErr  error
}

func (m *mockStream) Start(ctx context.Context) error {
	m.starts.Add(1)
	return m.startErr
}

func (m *mockStream) Stop() { m.stops.Add(1) }

func (m *mockStream) SyncAll(ctx context.Context) (int, error) {
	m.syncs.Add(1)
	return 3, m.syncErr
}

func TestRealtimeService_StartStop(t *testing.T) {
	stream := &mockStream{}
	svc := NewRealtimeService(stream)

	err := serveAndCancel(t, svc, func() bool { return stream.starts.Load() == 1 })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
	if stream.stops.Load() != 1 {
		t.Errorf("Stop calls = %d, want 1", stream.stops.Load())
	}
	if stream.syncs.Load() != 0 {
		t.Error("sync ran without WithStartupSync")
	}
}

func TestRealtimeService_StartupSync(t *testing.T) {
	for _, syncErr := range []error{nil, errors.New("lab api: 503")} {
		stream := &mockStream{syncErr: syncErr}
		svc := NewRealtimeService(stream, WithStartupSync(stream))

		serveAndCancel(t, svc, func() bool { return stream.syncs.Load() == 1 })
		if stream.stops.Load() != 1 {
			t.Errorf("syncErr=%v: Stop calls = %d, want 1", syncErr, stream.stops.Load())
		}
	}
}

func TestRealtimeService_StartFailure(t *testing.T) {
	stream := &mockStream{startErr: errors.New("realtime: no user id")}
	svc := NewRealtimeService(stream)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, stream.startErr) {
		t.Errorf("Serve = %v, want wrapped start error", err)
	}
	if stream.stops.Load() != 0 {
		t.Error("Stop called after failed Start")
	}
}

// ========================================
// PublisherService
// ========================================

type mockCloser struct {
	closes atomic.Int32
	err    error
}

func (m *mockCloser) Close() error {
	m.closes.Add(1)
	return m.err
}

func TestPublisherService(t *testing.T) {
	pub := &mockCloser{}
	svc := NewPublisherService(pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
	if pub.closes.Load() != 1 {
		t.Errorf("Close calls = %d, want 1", pub.closes.Load())
	}

	failing := &mockCloser{err: errors.New("nats: drain timeout")}
	if err := NewPublisherService(failing).Serve(ctx); !errors.Is(err, failing.err) {
		t.Errorf("Serve = %v, want close error", err)
	}
}

func TestServices_WithSupervisor(t *testing.T) {
	hub := &mockHub{}
	stream := &mockStream{}

	sup := suture.New("test", suture.Spec{
		FailureBackoff: 10 * time.Millisecond,
		Timeout:        time.Second,
	})
	sup.Add(NewHubService(hub))
	sup.Add(NewRealtimeService(stream))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for hub.runs.Load() == 0 || stream.starts.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("services not started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-errCh

	if stream.stops.Load() != 1 {
		t.Errorf("Stop calls = %d, want 1", stream.stops.Load())
	}
}
