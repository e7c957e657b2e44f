// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer runs a JetStream-enabled NATS server in process, so a
// single binary can run the whole pipeline without an external broker.
type EmbeddedServer struct {
	server    *server.Server
	config    ServerConfig
	clientURL string
}

// NewEmbeddedServer starts the server and waits up to 30 seconds for it to
// accept connections. A negative port picks a random free one.
func NewEmbeddedServer(cfg *ServerConfig) (*EmbeddedServer, error) {
	if cfg == nil {
		def := DefaultServerConfig()
		cfg = &def
	}

	opts := &server.Options{
		ServerName:         "iotpipeline",
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.JetStreamMaxMem,
		JetStreamMaxStore:  cfg.JetStreamMaxStore,
		NoLog:              true,
		NoSigs:             true,
		MaxPayload:         8 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{
		server:    ns,
		config:    *cfg,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the URL clients connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server and waits for it to exit unless ctx ends first.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// HealthCheck implements HealthCheckable.
func (s *EmbeddedServer) HealthCheck(_ context.Context) ComponentHealth {
	h := ComponentHealth{Name: "nats_server", Details: map[string]interface{}{"url": s.clientURL}}
	switch {
	case !s.server.Running():
		h.Error = "NATS server is not running"
	case !s.server.JetStreamEnabled():
		h.Error = "JetStream is disabled"
	default:
		h.Healthy = true
		h.Message = "NATS server is running"
	}
	return h
}
