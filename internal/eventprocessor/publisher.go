// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/iotpipeline/internal/metrics"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher is a JetStream publisher with an optional circuit breaker. It
// serves the HTTP ingest endpoints, the device event webhook and the poison
// queue.
type Publisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
	mu             sync.RWMutex
	closed         bool
	logger         watermill.LoggerAdapter
}

// NewPublisher connects a Watermill NATS publisher. The stream must already
// exist; the publisher never provisions it.
func NewPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("iotpipeline-publisher"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS publisher disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS publisher reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    cfg.EnableTrackMsgID,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return newPublisher(pub, logger), nil
}

func newPublisher(pub message.Publisher, logger watermill.LoggerAdapter) *Publisher {
	return &Publisher{publisher: pub, logger: logger}
}

// SetCircuitBreaker guards every subsequent Publish with cb.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.circuitBreaker = cb
}

// Publish sends msg to topic. The message UUID becomes the Nats-Msg-Id unless
// the caller already set one, so JetStream drops republished duplicates.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	closed, cb := p.closed, p.circuitBreaker
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	var err error
	if cb != nil {
		_, err = cb.Execute(func() (interface{}, error) {
			return nil, p.publisher.Publish(topic, msg)
		})
	} else {
		err = p.publisher.Publish(topic, msg)
	}

	metrics.RecordNATSPublish(err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// PublishPayload wraps payload in a message with the given id and metadata.
// An empty id gets a fresh UUID.
func (p *Publisher) PublishPayload(ctx context.Context, topic, id string, payload []byte, metadata map[string]string) error {
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, payload)
	for k, v := range metadata {
		msg.Metadata.Set(k, v)
	}
	return p.Publish(ctx, topic, msg)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// WatermillPublisher exposes the underlying publisher for the poison queue
// middleware.
func (p *Publisher) WatermillPublisher() message.Publisher {
	return p.publisher
}

// HealthCheck implements HealthCheckable.
func (p *Publisher) HealthCheck(_ context.Context) ComponentHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()

	h := ComponentHealth{Name: "publisher", Details: map[string]interface{}{}}
	if p.closed {
		h.Error = "publisher is closed"
		return h
	}
	h.Healthy = true
	if p.circuitBreaker != nil {
		state := p.circuitBreaker.State()
		h.Details["circuit_breaker"] = state.String()
		switch state {
		case gobreaker.StateOpen:
			h.Healthy = false
			h.Error = "circuit breaker open"
		case gobreaker.StateHalfOpen:
			h.Degraded = true
			h.Message = "circuit breaker half-open"
		}
	}
	return h
}
