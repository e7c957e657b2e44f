// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package services

import (
	"context"
	"fmt"
	"time"
)

// Runner is the Start/Shutdown lifecycle of the messaging components
// assembled in cmd/server.
type Runner interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// PipelineService supervises the message router and its consumers.
type PipelineService struct {
	runner          Runner
	shutdownTimeout time.Duration
	name            string
}

// NewPipelineService wraps runner. A non-positive shutdownTimeout falls
// back to 10s.
func NewPipelineService(runner Runner, shutdownTimeout time.Duration) *PipelineService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &PipelineService{
		runner:          runner,
		shutdownTimeout: shutdownTimeout,
		name:            "pipeline",
	}
}

// Serve starts the runner and blocks until ctx is canceled. A Start error
// is returned so suture applies its backoff and retries.
func (s *PipelineService) Serve(ctx context.Context) error {
	if err := s.runner.Start(ctx); err != nil {
		return fmt.Errorf("pipeline start failed: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.runner.Shutdown(shutdownCtx)

	return ctx.Err()
}

func (s *PipelineService) String() string {
	return s.name
}
