// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*PipelineService)(nil)
	_ suture.Service = (*PeriodicService)(nil)
)

type mockHTTPServer struct {
	listenErr     error
	shutdownErr   error
	started       chan struct{}
	stopCh        chan struct{}
	stopOnce      sync.Once
	shutdownCount atomic.Int32
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{
		started: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

func (m *mockHTTPServer) ListenAndServe() error {
	select {
	case m.started <- struct{}{}:
	default:
	}
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdownCount.Add(1)
	m.stopOnce.Do(func() { close(m.stopCh) })
	return m.shutdownErr
}

func TestNewHTTPServerService_DefaultTimeout(t *testing.T) {
	t.Parallel()
	for _, d := range []time.Duration{0, -time.Second} {
		svc := NewHTTPServerService(newMockHTTPServer(), d)
		if svc.shutdownTimeout != 10*time.Second {
			t.Errorf("timeout(%v) = %v, want 10s", d, svc.shutdownTimeout)
		}
	}
	if got := NewHTTPServerService(newMockHTTPServer(), time.Second).String(); got != "http-server" {
		t.Errorf("String() = %q", got)
	}
}

func TestHTTPServerService_Serve(t *testing.T) {
	t.Parallel()

	t.Run("graceful shutdown", func(t *testing.T) {
		t.Parallel()
		server := newMockHTTPServer()
		svc := NewHTTPServerService(server, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()

		<-server.started
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
		if server.shutdownCount.Load() != 1 {
			t.Errorf("Shutdown called %d times", server.shutdownCount.Load())
		}
	})

	t.Run("listen error", func(t *testing.T) {
		t.Parallel()
		server := newMockHTTPServer()
		server.listenErr = errors.New("address in use")
		svc := NewHTTPServerService(server, time.Second)

		err := svc.Serve(context.Background())
		if err == nil || !errors.Is(err, server.listenErr) {
			t.Errorf("Serve = %v, want wrapped listen error", err)
		}
	})

	t.Run("shutdown error", func(t *testing.T) {
		t.Parallel()
		server := newMockHTTPServer()
		server.shutdownErr = errors.New("deadline")
		svc := NewHTTPServerService(server, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()
		<-server.started
		cancel()

		if err := <-done; !errors.Is(err, server.shutdownErr) {
			t.Errorf("Serve = %v, want wrapped shutdown error", err)
		}
	})
}

type mockRunner struct {
	startErr  error
	running   atomic.Bool
	started   chan struct{}
	shutdowns atomic.Int32
}

func (m *mockRunner) Start(context.Context) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.running.Store(true)
	close(m.started)
	return nil
}

func (m *mockRunner) Shutdown(context.Context) {
	m.shutdowns.Add(1)
	m.running.Store(false)
}

func (m *mockRunner) IsRunning() bool { return m.running.Load() }

func TestPipelineService_Serve(t *testing.T) {
	t.Parallel()

	t.Run("start then shutdown", func(t *testing.T) {
		t.Parallel()
		runner := &mockRunner{started: make(chan struct{})}
		svc := NewPipelineService(runner, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()

		<-runner.started
		if !runner.IsRunning() {
			t.Error("runner not running after Start")
		}
		cancel()

		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v", err)
		}
		if runner.shutdowns.Load() != 1 || runner.IsRunning() {
			t.Error("runner was not shut down")
		}
	})

	t.Run("start failure", func(t *testing.T) {
		t.Parallel()
		runner := &mockRunner{startErr: errors.New("stream missing"), started: make(chan struct{})}
		svc := NewPipelineService(runner, 0)

		if err := svc.Serve(context.Background()); !errors.Is(err, runner.startErr) {
			t.Errorf("Serve = %v, want wrapped start error", err)
		}
		if runner.shutdowns.Load() != 0 {
			t.Error("Shutdown called after failed Start")
		}
		if svc.shutdownTimeout != 10*time.Second {
			t.Errorf("default timeout = %v", svc.shutdownTimeout)
		}
	})
}

func TestPeriodicService_Serve(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	svc := NewPeriodicService("cache-cleanup", 5*time.Millisecond, func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("first run fails")
		}
		return nil
	})
	if svc.String() != "cache-cleanup" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
	if calls.Load() < 3 {
		t.Errorf("fn called %d times, want >= 3 despite the first error", calls.Load())
	}
}

func TestNewPeriodicService_Panics(t *testing.T) {
	t.Parallel()
	tests := map[string]func(){
		"zero interval": func() { NewPeriodicService("x", 0, func(context.Context) error { return nil }) },
		"nil fn":        func() { NewPeriodicService("x", time.Second, nil) },
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			fn()
		})
	}
}
