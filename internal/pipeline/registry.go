// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry maps command kinds to handlers. Registration normally happens at
// startup; lookups are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Kind]Handler)}
}

// Register binds h to kind. A kind can only be bound once.
func (r *Registry) Register(kind Kind, h Handler) error {
	if kind == "" {
		return fmt.Errorf("register handler: empty command kind")
	}
	if h == nil {
		return fmt.Errorf("register handler for %s: nil handler", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("register handler for %s: already registered", kind)
	}
	r.handlers[kind] = h
	return nil
}

// Lookup returns the handler for kind.
func (r *Registry) Lookup(kind Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Handle registers a typed handler for C. The kind comes from C's zero value,
// so C must implement Kind on a value receiver.
//
//	pipeline.Handle(reg, stage.Validate) // func(ctx, ValidateTelemetry) (Outcome, error)
func Handle[C Command](r *Registry, fn func(ctx context.Context, cmd C) (Outcome, error)) error {
	var zero C
	kind := zero.Kind()
	return r.Register(kind, HandlerFunc(func(ctx context.Context, cmd Command) (Outcome, error) {
		typed, ok := cmd.(C)
		if !ok {
			return Outcome{}, fmt.Errorf("handler for %s received %T", kind, cmd)
		}
		return fn(ctx, typed)
	}))
}
