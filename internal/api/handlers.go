// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/iotpipeline/internal/audit"
	"github.com/tomtom215/iotpipeline/internal/devicestore"
	"github.com/tomtom215/iotpipeline/internal/eventprocessor"
	"github.com/tomtom215/iotpipeline/internal/twin"
)

// HeaderIdempotencyKey lets a caller choose the message id of a published
// message. Redelivering with the same key is deduplicated downstream.
const HeaderIdempotencyKey = "Idempotency-Key"

const defaultMaxBodyBytes = 1 << 20

// Publisher publishes raw payloads onto a pipeline subject.
type Publisher interface {
	PublishPayload(ctx context.Context, topic, id string, payload []byte, metadata map[string]string) error
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	CheckAll(ctx context.Context) eventprocessor.OverallHealth
}

// Config wires the handler. Publisher and Health are required; the query
// stores are optional and their routes are omitted when nil.
type Config struct {
	Publisher    Publisher
	Health       HealthChecker
	Audit        audit.Store
	Devices      devicestore.Repository
	Twins        twin.Service
	MaxBodyBytes int64
	Clock        func() time.Time
}

// Handler holds the dependencies of every endpoint.
type Handler struct {
	publisher    Publisher
	health       HealthChecker
	audit        audit.Store
	devices      devicestore.Repository
	twins        twin.Service
	maxBodyBytes int64
	now          func() time.Time
	startTime    time.Time
}

func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Publisher == nil {
		return nil, errors.New("api: publisher is required")
	}
	if cfg.Health == nil {
		return nil, errors.New("api: health checker is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Handler{
		publisher:    cfg.Publisher,
		health:       cfg.Health,
		audit:        cfg.Audit,
		devices:      cfg.Devices,
		twins:        cfg.Twins,
		maxBodyBytes: cfg.MaxBodyBytes,
		now:          cfg.Clock,
		startTime:    cfg.Clock(),
	}, nil
}
