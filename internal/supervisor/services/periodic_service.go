// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package services

import (
	"context"
	"time"

	"github.com/tomtom215/iotpipeline/internal/logging"
)

// PeriodicService calls fn every interval until its context is canceled.
// Errors from fn are logged and do not stop the service.
type PeriodicService struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
}

// NewPeriodicService panics on a non-positive interval or nil fn.
func NewPeriodicService(name string, interval time.Duration, fn func(ctx context.Context) error) *PeriodicService {
	if interval <= 0 {
		panic("services: periodic interval must be positive")
	}
	if fn == nil {
		panic("services: periodic fn is nil")
	}
	return &PeriodicService{name: name, interval: interval, fn: fn}
}

func (p *PeriodicService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.fn(ctx); err != nil && ctx.Err() == nil {
				logging.Ctx(ctx).Warn().Err(err).Str("service", p.name).Msg("periodic task failed")
			}
		}
	}
}

func (p *PeriodicService) String() string {
	return p.name
}
