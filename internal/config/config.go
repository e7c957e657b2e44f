// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package config

import "time"

// Config is the complete process configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	NATS     NATSConfig     `koanf:"nats"`
	Storage  StorageConfig  `koanf:"storage"`
	Audit    AuditConfig    `koanf:"audit"`
	Devices  DevicesConfig  `koanf:"devices"`
	Commands CommandsConfig `koanf:"commands"`
	Twin     TwinConfig     `koanf:"twin"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes" validate:"gt=0"`

	RateLimitReqs     int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// NATSConfig configures the broker connection, the stream and the consumers.
type NATSConfig struct {
	// EmbeddedServer runs a JetStream server in-process. When false, URL must
	// point at an external server.
	EmbeddedServer bool   `koanf:"embedded_server"`
	URL            string `koanf:"url" validate:"required"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port" validate:"gte=1,lte=65535"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory" validate:"gt=0"`
	MaxStore       int64  `koanf:"max_store" validate:"gt=0"`

	StreamName      string        `koanf:"stream_name" validate:"required,excludesall=.*>"`
	StreamMaxAge    time.Duration `koanf:"stream_max_age" validate:"gt=0"`
	DuplicateWindow time.Duration `koanf:"duplicate_window" validate:"gt=0"`

	// DurablePrefix is joined with the flow name for each consumer.
	DurablePrefix    string        `koanf:"durable_prefix" validate:"required,excludesall=.*>"`
	SubscribersCount int           `koanf:"subscribers_count" validate:"gte=1,lte=64"`
	AckWait          time.Duration `koanf:"ack_wait" validate:"gt=0"`
	MaxDeliver       int           `koanf:"max_deliver" validate:"gte=1"`
	MaxAckPending    int           `koanf:"max_ack_pending" validate:"gte=1"`

	RouterRetryCount           int           `koanf:"router_retry_count" validate:"gte=0"`
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval" validate:"gt=0"`
	RouterThrottlePerSecond    int64         `koanf:"router_throttle_per_second" validate:"gte=0"`
	RouterDeduplicationEnabled bool          `koanf:"router_deduplication_enabled"`
	RouterDeduplicationTTL     time.Duration `koanf:"router_deduplication_ttl" validate:"gt=0"`
	PoisonQueueTopic           string        `koanf:"poison_queue_topic" validate:"required"`
	CloseTimeout               time.Duration `koanf:"close_timeout" validate:"gt=0"`
}

// StorageConfig configures the tiered data lake.
type StorageConfig struct {
	Backend           string        `koanf:"backend" validate:"oneof=objectstore memory"`
	BronzeBucket      string        `koanf:"bronze_bucket" validate:"required"`
	SilverBucket      string        `koanf:"silver_bucket" validate:"required"`
	GoldBucket        string        `koanf:"gold_bucket" validate:"required"`
	GoldFlushInterval time.Duration `koanf:"gold_flush_interval" validate:"gt=0"`
	GoldRetention     time.Duration `koanf:"gold_retention" validate:"gte=1h"`
}

// AuditConfig configures the alert audit store.
type AuditConfig struct {
	Backend string `koanf:"backend" validate:"oneof=duckdb memory"`
	Path    string `koanf:"path"`
}

// DevicesConfig configures the device repository and its metadata cache.
type DevicesConfig struct {
	Backend    string        `koanf:"backend" validate:"oneof=badger memory"`
	Path       string        `koanf:"path"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval" validate:"gt=0"`
	CacheSize  int           `koanf:"cache_size" validate:"gte=1"`
	CacheTTL   time.Duration `koanf:"cache_ttl" validate:"gt=0"`
}

// CommandsConfig configures cloud-to-device commands.
type CommandsConfig struct {
	SubjectPrefix string        `koanf:"subject_prefix" validate:"required,excludesall=*>"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	MessageTTL    time.Duration `koanf:"message_ttl" validate:"gt=0"`
	RatePerSecond float64       `koanf:"rate_per_second" validate:"gte=0"`
	RateBurst     int           `koanf:"rate_burst" validate:"gte=1"`
}

// TwinConfig configures the digital twin store.
type TwinConfig struct {
	Backend string        `koanf:"backend" validate:"oneof=kv memory"`
	Bucket  string        `koanf:"bucket" validate:"required"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// PipelineConfig configures the command cascade and telemetry validation.
type PipelineConfig struct {
	MaxChainDepth   int           `koanf:"max_chain_depth" validate:"gte=1,lte=64"`
	MaxMeasurements int           `koanf:"max_measurements" validate:"gte=1"`
	MaxAge          time.Duration `koanf:"max_age" validate:"gt=0"`
	MaxFutureSkew   time.Duration `koanf:"max_future_skew" validate:"gte=0"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Addr is the HTTP listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
