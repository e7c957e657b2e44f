// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// Kind identifies a command type, e.g. "telemetry.validate".
type Kind string

// Command is a value handed from one stage to the next.
type Command interface {
	Kind() Kind
}

// Outcome is what a stage hands back: the follow-up command (nil ends the
// chain) and the domain events it raised.
type Outcome struct {
	Next   Command
	Events []domain.Event
}

// Done ends the chain with events.
func Done(events ...domain.Event) Outcome {
	return Outcome{Events: events}
}

// Then continues the chain with next.
func Then(next Command, events ...domain.Event) Outcome {
	return Outcome{Next: next, Events: events}
}

// Handler executes one stage.
type Handler interface {
	Handle(ctx context.Context, cmd Command) (Outcome, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, cmd Command) (Outcome, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) (Outcome, error) {
	return f(ctx, cmd)
}

// Dispatcher starts a chain. *Orchestrator implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command) error
}

var (
	// ErrUnknownCommand is returned when no handler is registered for a kind.
	ErrUnknownCommand = errors.New("no handler registered for command")

	// ErrChainTooLong is returned when a chain exceeds the configured depth.
	ErrChainTooLong = errors.New("command chain exceeded maximum depth")

	// ErrNilCommand is returned when Dispatch is called with nil.
	ErrNilCommand = errors.New("nil command")
)

// StageError wraps a handler failure with its position in the chain.
type StageError struct {
	Kind  Kind
	Step  int
	Entry Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s (step %d of chain %s): %v", e.Kind, e.Step, e.Entry, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
