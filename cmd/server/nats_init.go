// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/iotpipeline/internal/config"
	"github.com/tomtom215/iotpipeline/internal/eventprocessor"
	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
)

// NATSComponents owns the messaging side of the process: the optional
// embedded server, the client connection, the publisher and the router
// with one subscriber per flow.
type NATSComponents struct {
	cfg     config.NATSConfig
	natsURL string

	server            *eventprocessor.EmbeddedServer
	natsConn          *natsgo.Conn
	js                jetstream.JetStream
	streamInitializer *eventprocessor.StreamInitializer
	publisher         *eventprocessor.Publisher

	router      *eventprocessor.Router
	subscribers map[string]*eventprocessor.Subscriber

	mu      sync.Mutex
	running bool
	closed  bool
}

// InitNATS starts or connects to NATS, makes sure the stream exists and
// creates the publisher and router. Flows are attached with AddFlow.
func InitNATS(ctx context.Context, cfg *config.Config) (*NATSComponents, error) {
	c := &NATSComponents{
		cfg:         cfg.NATS,
		subscribers: make(map[string]*eventprocessor.Subscriber),
	}

	if cfg.NATS.EmbeddedServer {
		serverCfg := eventprocessor.DefaultServerConfig()
		serverCfg.Host = cfg.NATS.Host
		serverCfg.Port = cfg.NATS.Port
		serverCfg.StoreDir = cfg.NATS.StoreDir
		serverCfg.JetStreamMaxMem = cfg.NATS.MaxMemory
		serverCfg.JetStreamMaxStore = cfg.NATS.MaxStore

		server, err := eventprocessor.NewEmbeddedServer(&serverCfg)
		if err != nil {
			return nil, err
		}
		c.server = server
		c.natsURL = server.ClientURL()
		logging.Info().Str("url", c.natsURL).Msg("Embedded NATS server started")
	} else {
		c.natsURL = cfg.NATS.URL
		logging.Info().Str("url", c.natsURL).Msg("Using external NATS server")
	}

	nc, err := natsgo.Connect(c.natsURL,
		natsgo.Name("iotpipeline"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	c.natsConn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	c.js = js

	streamCfg := eventprocessor.DefaultStreamConfig()
	streamCfg.Name = cfg.NATS.StreamName
	streamCfg.MaxAge = cfg.NATS.StreamMaxAge
	streamCfg.DuplicateWindow = cfg.NATS.DuplicateWindow

	c.streamInitializer, err = eventprocessor.NewStreamInitializer(js, &streamCfg)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("create stream initializer: %w", err)
	}
	stream, err := c.streamInitializer.EnsureStream(ctx)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("ensure stream exists: %w", err)
	}
	info := stream.CachedInfo()
	logging.Info().
		Str("name", info.Config.Name).
		Strs("subjects", info.Config.Subjects).
		Dur("max_age", info.Config.MaxAge).
		Msg("JetStream stream ready")

	publisher, err := eventprocessor.NewPublisher(eventprocessor.DefaultPublisherConfig(c.natsURL), nil)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	publisher.SetCircuitBreaker(eventprocessor.NewCircuitBreaker(
		eventprocessor.DefaultCircuitBreakerConfig("nats-publisher")))
	c.publisher = publisher

	routerCfg := eventprocessor.DefaultRouterConfig()
	routerCfg.RetryMaxRetries = cfg.NATS.RouterRetryCount
	routerCfg.RetryInitialInterval = cfg.NATS.RouterRetryInitialInterval
	routerCfg.RetryMaxInterval = cfg.NATS.RouterRetryInitialInterval * 10
	routerCfg.ThrottlePerSecond = cfg.NATS.RouterThrottlePerSecond
	routerCfg.DeduplicationEnabled = cfg.NATS.RouterDeduplicationEnabled
	routerCfg.DeduplicationTTL = cfg.NATS.RouterDeduplicationTTL
	routerCfg.PoisonQueueTopic = cfg.NATS.PoisonQueueTopic
	routerCfg.CloseTimeout = cfg.NATS.CloseTimeout

	var poisonPub message.Publisher = publisher.WatermillPublisher()
	router, err := eventprocessor.NewRouter(&routerCfg, poisonPub, nil)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("create router: %w", err)
	}
	c.router = router
	logging.Info().
		Int("retry", routerCfg.RetryMaxRetries).
		Bool("dedup", routerCfg.DeduplicationEnabled).
		Str("poison", routerCfg.PoisonQueueTopic).
		Msg("Watermill Router created")

	return c, nil
}

// AddFlow subscribes a durable consumer to subject and feeds every message
// through decode into dispatcher.
func (c *NATSComponents) AddFlow(flow, subject string, decode eventprocessor.Decoder, dispatcher pipeline.Dispatcher) error {
	subCfg := eventprocessor.DefaultSubscriberConfig(c.natsURL, flow)
	subCfg.StreamName = c.cfg.StreamName
	subCfg.DurableName = c.cfg.DurablePrefix + "-" + flow
	subCfg.QueueGroup = c.cfg.DurablePrefix + "-" + flow
	subCfg.SubscribersCount = c.cfg.SubscribersCount
	subCfg.AckWaitTimeout = c.cfg.AckWait
	subCfg.MaxDeliver = c.cfg.MaxDeliver
	subCfg.MaxAckPending = c.cfg.MaxAckPending
	subCfg.CloseTimeout = c.cfg.CloseTimeout

	sub, err := eventprocessor.NewSubscriber(&subCfg, nil)
	if err != nil {
		return fmt.Errorf("create %s subscriber: %w", flow, err)
	}
	c.subscribers[flow] = sub

	c.router.AddConsumerHandler(flow+"-handler", subject, sub,
		eventprocessor.NewIngestHandler(flow, decode, dispatcher))
	logging.Info().Str("flow", flow).Str("subject", subject).Msg("Flow registered with Router")
	return nil
}

// RegisterHealth adds the messaging components to checker.
func (c *NATSComponents) RegisterHealth(checker *eventprocessor.HealthChecker) {
	checker.RegisterComponent("publisher", c.publisher)
	checker.RegisterComponent("router", c.router)
	checker.RegisterComponent("stream", c.streamInitializer)
	if c.server != nil {
		checker.RegisterComponent("nats_server", c.server)
	}
}

func (c *NATSComponents) JetStream() jetstream.JetStream { return c.js }

func (c *NATSComponents) Publisher() *eventprocessor.Publisher { return c.publisher }

// Start runs the router and returns once it is consuming.
func (c *NATSComponents) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	running := c.router.RunAsync(ctx)
	select {
	case <-running:
	case <-ctx.Done():
		return fmt.Errorf("context canceled while starting router: %w", ctx.Err())
	}

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	logging.Info().Int("flows", len(c.subscribers)).Msg("Watermill Router started")
	return nil
}

// Shutdown stops consumption. The publisher and connection stay open for
// the HTTP edge until Close.
func (c *NATSComponents) Shutdown(_ context.Context) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	if err := c.router.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing Router")
	}
	for flow, sub := range c.subscribers {
		if err := sub.Close(); err != nil {
			logging.Error().Err(err).Str("flow", flow).Msg("Error closing subscriber")
		}
	}
	logging.Info().Msg("Pipeline consumers stopped")
}

func (c *NATSComponents) IsRunning() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Close releases everything in reverse order of creation. It is safe to
// call on a partially initialized value and more than once.
func (c *NATSComponents) Close(ctx context.Context) {
	if c == nil {
		return
	}
	c.Shutdown(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
	}
	if c.natsConn != nil {
		c.natsConn.Close()
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down NATS server")
		}
		logging.Info().Msg("Embedded NATS server stopped")
	}
}
