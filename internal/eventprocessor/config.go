// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package eventprocessor

import (
	"time"
)

// Subjects used on the pipeline stream.
const (
	SubjectTelemetry  = "iot.telemetry"
	SubjectAlerts     = "iot.alerts"
	SubjectLifecycle  = "iot.lifecycle"
	SubjectDeadLetter = "iot.deadletter"
	SubjectCommands   = "iot.commands"
)

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for a single-node embedded broker.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   256 * 1024 * 1024,
		JetStreamMaxStore: 4 * 1024 * 1024 * 1024,
	}
}

// StreamConfig configures the JetStream stream that carries every pipeline subject.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            "IOT",
		Subjects:        []string{"iot.>"},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        2 * 1024 * 1024 * 1024,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// PublisherConfig configures the Watermill NATS publisher.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool
}

func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024,
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig configures one durable JetStream consumer.
type SubscriberConfig struct {
	URL              string
	StreamName       string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
	MaxDeliver       int
	MaxAckPending    int
	MaxReconnects    int
	ReconnectWait    time.Duration
}

// DefaultSubscriberConfig returns defaults for the consumer of one flow.
// Durable and queue names must not contain dots.
func DefaultSubscriberConfig(url, flow string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		StreamName:       "IOT",
		DurableName:      "iotpipeline-" + flow,
		QueueGroup:       "iotpipeline-" + flow,
		SubscribersCount: 4,
		AckWaitTimeout:   60 * time.Second,
		CloseTimeout:     30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    256,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// CircuitBreakerConfig configures a gobreaker instance.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// RouterConfig configures the Watermill router and its middleware.
type RouterConfig struct {
	// CloseTimeout bounds how long Close waits for in-flight handlers.
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// Messages per second across all handlers; 0 disables throttling.
	ThrottlePerSecond int64

	PoisonQueueTopic string

	// Deduplication keys on the Nats-Msg-Id header. A key is recorded only
	// after its handler succeeds; failed messages are retried and redelivered.
	DeduplicationEnabled  bool
	DeduplicationTTL      time.Duration
	DeduplicationCapacity int
}

// DefaultRouterConfig returns production defaults for the router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:          30 * time.Second,
		RetryMaxRetries:       3,
		RetryInitialInterval:  500 * time.Millisecond,
		RetryMaxInterval:      10 * time.Second,
		RetryMultiplier:       2.0,
		ThrottlePerSecond:     0,
		PoisonQueueTopic:      SubjectDeadLetter,
		DeduplicationEnabled:  false,
		DeduplicationTTL:      5 * time.Minute,
		DeduplicationCapacity: 10000,
	}
}
