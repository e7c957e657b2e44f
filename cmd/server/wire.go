// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/iotpipeline/internal/alerts"
	"github.com/tomtom215/iotpipeline/internal/audit"
	"github.com/tomtom215/iotpipeline/internal/config"
	"github.com/tomtom215/iotpipeline/internal/devicecmd"
	"github.com/tomtom215/iotpipeline/internal/devices"
	"github.com/tomtom215/iotpipeline/internal/devicestore"
	"github.com/tomtom215/iotpipeline/internal/eventprocessor"
	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
	"github.com/tomtom215/iotpipeline/internal/storage"
	"github.com/tomtom215/iotpipeline/internal/telemetry"
	"github.com/tomtom215/iotpipeline/internal/twin"
)

// Stores holds every repository the stages write to.
type Stores struct {
	Writer     *storage.Writer
	Aggregator *storage.Aggregator
	Audit      audit.Store
	Devices    devicestore.Repository
	Cache      *devicestore.Cached
	Twins      twin.Service

	auditDB *sql.DB
	badger  *devicestore.BadgerStore
	twinKV  *twin.KVService
}

// OpenStores opens each backend selected in cfg. js may be nil only when
// no backend needs JetStream.
//
// Backends per concern:
//   - data lake: in-memory tiers, or one JetStream object store bucket per tier
//   - audit log: in-memory, or a DuckDB table created on first open
//   - device registry: in-memory, or Badger; either is fronted by the
//     metadata LRU in devicestore.Cached
//   - digital twins: in-memory, or a JetStream KV bucket
//
// On error every backend opened so far is closed before returning.
func OpenStores(ctx context.Context, cfg *config.Config, js jetstream.JetStream) (*Stores, error) {
	s := &Stores{}

	var tiers storage.Stores
	switch cfg.Storage.Backend {
	case "memory":
		tiers = storage.NewMemoryTiers().Stores()
	default:
		buckets := []struct {
			name string
			desc string
			dst  *storage.BlobStore
		}{
			{cfg.Storage.BronzeBucket, "Raw telemetry readings", &tiers.Bronze},
			{cfg.Storage.SilverBucket, "Validated and enriched readings", &tiers.Silver},
			{cfg.Storage.GoldBucket, "Hourly telemetry aggregates", &tiers.Gold},
		}
		for _, b := range buckets {
			blobs, err := storage.OpenObjectStore(ctx, js, b.name, b.desc)
			if err != nil {
				return nil, err
			}
			*b.dst = blobs
		}
	}
	writer, err := storage.NewWriter(tiers)
	if err != nil {
		return nil, err
	}
	s.Writer = writer
	s.Aggregator = storage.NewAggregator(writer, storage.AggregatorConfig{
		FlushInterval: cfg.Storage.GoldFlushInterval,
		Retention:     cfg.Storage.GoldRetention,
	})

	switch cfg.Audit.Backend {
	case "memory":
		s.Audit = audit.NewMemoryStore()
	default:
		db, err := audit.OpenDuckDB(cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
		s.auditDB = db
		store := audit.NewDuckDBStore(db)
		if err := store.CreateTable(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.Audit = store
	}

	var repo devicestore.Repository
	switch cfg.Devices.Backend {
	case "memory":
		repo = devicestore.NewMemoryStore()
	default:
		badgerCfg := devicestore.DefaultBadgerConfig()
		badgerCfg.Path = cfg.Devices.Path
		badgerCfg.SyncWrites = cfg.Devices.SyncWrites
		badgerCfg.GCInterval = cfg.Devices.GCInterval
		store, err := devicestore.OpenBadger(badgerCfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.badger = store
		repo = store
	}
	s.Cache = devicestore.NewCached(repo, cfg.Devices.CacheSize, cfg.Devices.CacheTTL)
	s.Devices = s.Cache

	switch cfg.Twin.Backend {
	case "memory":
		s.Twins = twin.NewMemoryService()
	default:
		kv, err := twin.OpenKV(ctx, js, cfg.Twin.Bucket, cfg.Twin.Timeout)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.twinKV = kv
		s.Twins = kv
	}

	logging.Info().
		Str("storage", cfg.Storage.Backend).
		Str("audit", cfg.Audit.Backend).
		Str("devices", cfg.Devices.Backend).
		Str("twin", cfg.Twin.Backend).
		Msg("Stores opened")
	return s, nil
}

// RegisterHealth adds checks for the backends that can fail independently.
func (s *Stores) RegisterHealth(checker *eventprocessor.HealthChecker) {
	if s.auditDB != nil {
		checker.RegisterComponent("audit_db", pingCheck("audit_db", s.auditDB.PingContext))
	}
	if s.twinKV != nil {
		checker.RegisterComponent("twin_kv", pingCheck("twin_kv", s.twinKV.HealthCheck))
	}
}

func pingCheck(name string, ping func(context.Context) error) eventprocessor.HealthCheckFunc {
	return func(ctx context.Context) eventprocessor.ComponentHealth {
		h := eventprocessor.ComponentHealth{Name: name, Healthy: true, LastCheck: time.Now()}
		if err := ping(ctx); err != nil {
			h.Healthy = false
			h.Error = err.Error()
		}
		return h
	}
}

// Close releases the backends that hold files open.
func (s *Stores) Close() {
	if s.badger != nil {
		if err := s.badger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing device store")
		}
	}
	if s.auditDB != nil {
		if err := s.auditDB.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit database")
		}
	}
}

// BuildPipeline registers every stage and returns the dispatcher the
// consumers feed.
func BuildPipeline(cfg *config.Config, s *Stores, sender devicecmd.Sender, now func() time.Time) (*pipeline.Orchestrator, error) {
	if now == nil {
		now = time.Now
	}
	reg := pipeline.NewRegistry()

	tel, err := telemetry.NewStages(telemetry.Config{
		Writer:   s.Writer,
		Metadata: s.Cache,
		Validator: telemetry.NewValidator(telemetry.ValidatorConfig{
			MaxMeasurements: cfg.Pipeline.MaxMeasurements,
			MaxAge:          cfg.Pipeline.MaxAge,
			MaxFutureSkew:   cfg.Pipeline.MaxFutureSkew,
		}, now),
		Observer: s.Aggregator,
		Clock:    now,
	})
	if err != nil {
		return nil, err
	}
	al, err := alerts.NewStages(s.Audit, sender, now)
	if err != nil {
		return nil, err
	}
	dev, err := devices.NewStages(s.Devices, s.Twins, now)
	if err != nil {
		return nil, err
	}

	if err := errors.Join(tel.Register(reg), al.Register(reg), dev.Register(reg)); err != nil {
		return nil, fmt.Errorf("register stages: %w", err)
	}

	return pipeline.NewOrchestrator(reg, pipeline.OrchestratorConfig{
		MaxDepth: cfg.Pipeline.MaxChainDepth,
		Observer: pipeline.LogObserver{},
	}), nil
}

// NewCommandSender publishes device commands on JetStream behind their own
// circuit breaker.
func NewCommandSender(cfg config.CommandsConfig, js jetstream.JetStream) *devicecmd.JetStreamSender {
	return devicecmd.NewJetStreamSender(js, devicecmd.Config{
		SubjectPrefix: cfg.SubjectPrefix,
		Timeout:       cfg.Timeout,
		MessageTTL:    cfg.MessageTTL,
		RatePerSecond: cfg.RatePerSecond,
		RateBurst:     cfg.RateBurst,
	}, eventprocessor.NewCircuitBreaker(eventprocessor.DefaultCircuitBreakerConfig("device-commands")))
}

// flows lists the consumers attached to the router.
var flows = []struct {
	name    string
	subject string
	decode  eventprocessor.Decoder
}{
	{"telemetry", eventprocessor.SubjectTelemetry, telemetry.Decode},
	{"alerts", eventprocessor.SubjectAlerts, alerts.Decode},
	{"lifecycle", eventprocessor.SubjectLifecycle, devices.Decode},
}
