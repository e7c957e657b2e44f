// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/metrics"
)

// DefaultMaxDepth bounds chain length. The longest real chain is four stages.
const DefaultMaxDepth = 32

// EventObserver receives the domain events raised by each stage.
type EventObserver interface {
	ObserveEvents(ctx context.Context, kind Kind, events []domain.Event)
}

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	// MaxDepth is the most stages one Dispatch may run. Default: 32.
	MaxDepth int

	// Observer is optional.
	Observer EventObserver
}

// Orchestrator dispatches commands and follows their cascades.
type Orchestrator struct {
	registry *Registry
	maxDepth int
	observer EventObserver
}

// NewOrchestrator creates an orchestrator over registry.
func NewOrchestrator(registry *Registry, cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &Orchestrator{
		registry: registry,
		maxDepth: cfg.MaxDepth,
		observer: cfg.Observer,
	}
}

// Dispatch runs cmd and every follow-up command it produces. It returns nil
// only when the chain reached a terminal stage.
//
// For each step of the chain Dispatch:
//  1. stops with ErrChainTooLong once MaxDepth stages have run
//  2. stops with the context error if ctx is done
//  3. looks up the handler registered for the command's Kind
//  4. runs it and hands any domain events to the Observer
//  5. continues with Outcome.Next, or returns when it is nil
//
// Stage failures are wrapped in a *StageError naming the stage, its step and
// the entry kind, so callers can classify the cause with errors.As and
// errors.Is. Stages already completed are not rolled back; every stage is
// idempotent and a redelivered message replays the chain from its entry.
//
// Example:
//
//	err := orch.Dispatch(ctx, telemetry.ProcessTelemetry{Reading: r})
//	var stageErr *pipeline.StageError
//	if errors.As(err, &stageErr) {
//	    log.Warn().Str("stage", string(stageErr.Kind)).Msg("cascade stopped")
//	}
func (o *Orchestrator) Dispatch(ctx context.Context, cmd Command) error {
	if cmd == nil {
		return ErrNilCommand
	}

	entry := cmd.Kind()
	start := time.Now()
	steps, err := o.run(ctx, entry, cmd)
	metrics.RecordChain(string(entry), steps, time.Since(start), err)
	return err
}

func (o *Orchestrator) run(ctx context.Context, entry Kind, cmd Command) (int, error) {
	for step := 1; cmd != nil; step++ {
		kind := cmd.Kind()

		if step > o.maxDepth {
			return step - 1, fmt.Errorf("%w: %d stages from %s, next %s", ErrChainTooLong, o.maxDepth, entry, kind)
		}
		if err := ctx.Err(); err != nil {
			return step - 1, &StageError{Kind: kind, Step: step, Entry: entry, Err: err}
		}

		handler, ok := o.registry.Lookup(kind)
		if !ok {
			return step - 1, &StageError{Kind: kind, Step: step, Entry: entry, Err: ErrUnknownCommand}
		}

		stageStart := time.Now()
		outcome, err := handler.Handle(ctx, cmd)
		metrics.RecordStage(string(kind), time.Since(stageStart), err)
		if err != nil {
			return step, &StageError{Kind: kind, Step: step, Entry: entry, Err: err}
		}

		o.emit(ctx, kind, outcome.Events)

		if outcome.Next != nil {
			logging.Ctx(ctx).Trace().
				Str("from", string(kind)).
				Str("to", string(outcome.Next.Kind())).
				Msg("Cascading command")
		}
		cmd = outcome.Next
		if cmd == nil {
			return step, nil
		}
	}
	return 0, nil
}

func (o *Orchestrator) emit(ctx context.Context, kind Kind, events []domain.Event) {
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		metrics.RecordDomainEvent(ev.EventName())
	}
	if o.observer != nil {
		o.observer.ObserveEvents(ctx, kind, events)
	}
}

// LogObserver writes each event at debug level.
type LogObserver struct{}

func (LogObserver) ObserveEvents(ctx context.Context, kind Kind, events []domain.Event) {
	logger := logging.Ctx(ctx)
	for _, ev := range events {
		logger.Debug().
			Str("stage", string(kind)).
			Str("event", ev.EventName()).
			Time("occurred_at", ev.OccurredAt()).
			Msg("Domain event")
	}
}
