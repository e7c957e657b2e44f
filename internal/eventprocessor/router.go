// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package eventprocessor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/iotpipeline/internal/cache"
	"github.com/tomtom215/iotpipeline/internal/metrics"
)

// Router wraps the Watermill router with the pipeline's middleware stack.
type Router struct {
	router   *message.Router
	config   RouterConfig
	logger   watermill.LoggerAdapter
	handlers map[string]*message.Handler
	dedup    *MessageDeduplicator
	running  atomic.Bool
}

// MessageDeduplicator drops messages whose key already completed within the
// TTL. Unlike Watermill's Deduplicator it records a key only after the
// handler succeeds, so a failed attempt stays eligible for retry and
// redelivery.
type MessageDeduplicator struct {
	cache      *cache.LRU[string, struct{}]
	keyFactory func(*message.Message) (string, error)
}

func NewMessageDeduplicator(capacity int, ttl time.Duration) *MessageDeduplicator {
	return &MessageDeduplicator{
		cache:      cache.NewLRU[string, struct{}](capacity, ttl),
		keyFactory: DeduplicationKey,
	}
}

// Seen reports whether key completed within the TTL.
func (d *MessageDeduplicator) Seen(key string) bool {
	_, ok := d.cache.Get(key)
	return ok
}

// Complete records key as successfully handled.
func (d *MessageDeduplicator) Complete(key string) {
	d.cache.Add(key, struct{}{})
}

// Middleware skips messages that already completed and marks a message
// complete once h returns without error:
//
//  1. Derive the key (Nats-Msg-Id, else the Watermill UUID)
//  2. If the key completed within the TTL, ack without calling h
//  3. Otherwise call h; record the key only when h returns nil
//
// Two concurrent deliveries of the same key may both run h. Stages are
// idempotent, so the second run is a duplicate skip further down.
func (d *MessageDeduplicator) Middleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		key, err := d.keyFactory(msg)
		if err != nil {
			return h(msg)
		}
		if d.Seen(key) {
			metrics.RecordSettlement(message.HandlerNameFromCtx(msg.Context()), "duplicate")
			return nil, nil
		}
		out, err := h(msg)
		if err == nil {
			d.Complete(key)
		}
		return out, err
	}
}

// DeduplicationKey prefers the publisher-assigned Nats-Msg-Id, which survives
// redelivery, over the Watermill UUID.
func DeduplicationKey(msg *message.Message) (string, error) {
	if id := msg.Metadata.Get(natsgo.MsgIdHdr); id != "" {
		return id, nil
	}
	return msg.UUID, nil
}

// NewRouter builds a router with, outermost first:
//
//  1. settlement accounting
//  2. panic recovery
//  3. optional deduplication of completed messages
//  4. retry of retryable errors
//  5. optional throttling
//  6. poison routing of permanent errors
//
// A message leaves the router acked only when its handler returned nil or
// its error was permanent and the poison queue accepted it.
func NewRouter(cfg *RouterConfig, poisonPublisher message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg == nil {
		def := DefaultRouterConfig()
		cfg = &def
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{
		router:   wmRouter,
		config:   *cfg,
		logger:   logger,
		handlers: make(map[string]*message.Handler),
	}

	wmRouter.AddMiddleware(settlementMiddleware)
	wmRouter.AddMiddleware(middleware.Recoverer)

	if cfg.DeduplicationEnabled {
		r.dedup = NewMessageDeduplicator(cfg.DeduplicationCapacity, cfg.DeduplicationTTL)
		wmRouter.AddMiddleware(r.dedup.Middleware)
	}

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		ShouldRetry: func(params middleware.RetryParams) bool {
			return IsRetryableError(params.Err)
		},
		Logger: logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if cfg.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(cfg.ThrottlePerSecond, time.Second)
		wmRouter.AddMiddleware(throttle.Middleware)
	}

	if poisonPublisher != nil && cfg.PoisonQueueTopic != "" {
		poison, err := middleware.PoisonQueueWithFilter(poisonPublisher, cfg.PoisonQueueTopic, IsPermanentError)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	return r, nil
}

// settlementMiddleware counts messages that leave the router with an error.
// Watermill nacks them and JetStream redelivers.
func settlementMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		out, err := h(msg)
		if err != nil {
			metrics.RecordSettlement(message.HandlerNameFromCtx(msg.Context()), "nack")
		}
		return out, err
	}
}

// AddConsumerHandler registers a handler that produces no output messages.
func (r *Router) AddConsumerHandler(
	name string,
	subscribeTopic string,
	subscriber message.Subscriber,
	handler message.NoPublishHandlerFunc,
) *message.Handler {
	h := r.router.AddConsumerHandler(name, subscribeTopic, subscriber, handler)
	r.handlers[name] = h
	return h
}

// Run blocks until ctx is canceled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)
	return r.router.Run(ctx)
}

// RunAsync starts the router in the background. The returned channel closes
// once every handler is subscribed.
func (r *Router) RunAsync(ctx context.Context) <-chan struct{} {
	go func() {
		if err := r.Run(ctx); err != nil {
			r.logger.Error("Router stopped with error", err, nil)
		}
	}()
	return r.router.Running()
}

func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close waits up to CloseTimeout for in-flight messages.
func (r *Router) Close() error {
	return r.router.Close()
}

func (r *Router) IsRunning() bool {
	return r.running.Load()
}

// HealthCheck implements HealthCheckable.
func (r *Router) HealthCheck(_ context.Context) ComponentHealth {
	h := ComponentHealth{
		Name:    "router",
		Details: map[string]interface{}{"handlers": len(r.handlers)},
	}
	if !r.IsRunning() {
		h.Error = "router is not running"
		return h
	}
	h.Healthy = true
	h.Message = "router is running"
	if r.dedup != nil {
		hits, _, size := r.dedup.cache.Stats()
		h.Details["dedup_hits"] = hits
		h.Details["dedup_size"] = size
	}
	return h
}
