// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/iotpipeline/internal/api"
	"github.com/tomtom215/iotpipeline/internal/config"
	"github.com/tomtom215/iotpipeline/internal/eventprocessor"
	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/supervisor"
	"github.com/tomtom215/iotpipeline/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
	logging.Info().Msg("Application stopped gracefully")
}

// run wires the process and blocks until a termination signal.
//
// Initialization order:
//  1. NATS: embedded server or client connection, stream, publisher, router
//  2. stores: data lake tiers, audit log, device registry, digital twins
//  3. pipeline: every stage registered on one orchestrator, one consumer per flow
//  4. HTTP edge: chi router with CORS and rate limiting
//  5. supervisor tree: data, messaging and API layers
//
// Shutdown runs in reverse. The tree stops consumption and the HTTP server
// first; the deferred Close calls then release the stores and NATS, so the
// final gold flush and in-flight publishes still have their backends.
func run(cfg *config.Config) error {
	logging.Info().
		Bool("embedded_nats", cfg.NATS.EmbeddedServer).
		Str("stream", cfg.NATS.StreamName).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting IoT pipeline with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	natsComponents, err := InitNATS(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize NATS: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.NATS.CloseTimeout)
		defer closeCancel()
		natsComponents.Close(closeCtx)
	}()

	stores, err := OpenStores(ctx, cfg, natsComponents.JetStream())
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer stores.Close()

	sender := NewCommandSender(cfg.Commands, natsComponents.JetStream())

	orchestrator, err := BuildPipeline(cfg, stores, sender, time.Now)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	for _, f := range flows {
		if err := natsComponents.AddFlow(f.name, f.subject, f.decode, orchestrator); err != nil {
			return err
		}
	}

	// Health aggregates every backend that can fail on its own.
	health := eventprocessor.NewHealthChecker(5 * time.Second)
	natsComponents.RegisterHealth(health)
	stores.RegisterHealth(health)

	handler, err := api.NewHandler(api.Config{
		Publisher:    natsComponents.Publisher(),
		Health:       health,
		Audit:        stores.Audit,
		Devices:      stores.Devices,
		Twins:        stores.Twins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	if err != nil {
		return fmt.Errorf("create API handler: %w", err)
	}

	mwCfg := api.DefaultMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Server.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.Server.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Server.RateLimitDisabled
	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (RATE_LIMIT_DISABLED=true)")
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, api.NewMiddleware(mwCfg)),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	// Data layer: background work against the stores.
	tree.AddDataService(stores.Aggregator)
	if stores.badger != nil {
		tree.AddDataService(stores.badger)
	}
	tree.AddDataService(services.NewPeriodicService("device-cache-cleanup", cfg.Devices.CacheTTL,
		func(context.Context) error {
			if n := stores.Cache.CleanupExpired(); n > 0 {
				logging.Debug().Int("removed", n).Msg("Expired device metadata evicted")
			}
			return nil
		}))
	tree.AddDataService(services.NewPeriodicService("command-limiter-prune", 10*time.Minute,
		func(context.Context) error {
			sender.Prune(10 * time.Minute)
			return nil
		}))

	tree.AddMessagingService(services.NewPipelineService(natsComponents, cfg.NATS.CloseTimeout))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
		serveErr = err
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	return serveErr
}
