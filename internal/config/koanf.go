// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/iotpipeline/config.yaml",
	"/etc/iotpipeline/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			MaxBodyBytes:      1 << 20,
			RateLimitReqs:     600,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{},
		},
		NATS: NATSConfig{
			EmbeddedServer:             true,
			URL:                        "nats://127.0.0.1:4222",
			Host:                       "127.0.0.1",
			Port:                       4222,
			StoreDir:                   "/data/nats/jetstream",
			MaxMemory:                  256 << 20,
			MaxStore:                   4 << 30,
			StreamName:                 "IOT",
			StreamMaxAge:               7 * 24 * time.Hour,
			DuplicateWindow:            2 * time.Minute,
			DurablePrefix:              "iotpipeline",
			SubscribersCount:           4,
			AckWait:                    60 * time.Second,
			MaxDeliver:                 5,
			MaxAckPending:              256,
			RouterRetryCount:           3,
			RouterRetryInitialInterval: 500 * time.Millisecond,
			RouterThrottlePerSecond:    0, // unlimited
			RouterDeduplicationEnabled: false,
			RouterDeduplicationTTL:     5 * time.Minute,
			PoisonQueueTopic:           "iot.deadletter",
			CloseTimeout:               30 * time.Second,
		},
		Storage: StorageConfig{
			Backend:           "objectstore",
			BronzeBucket:      "bronze",
			SilverBucket:      "silver",
			GoldBucket:        "gold",
			GoldFlushInterval: time.Minute,
			GoldRetention:     25 * time.Hour,
		},
		Audit: AuditConfig{
			Backend: "duckdb",
			Path:    "/data/audit.duckdb",
		},
		Devices: DevicesConfig{
			Backend:    "badger",
			Path:       "/data/devices",
			SyncWrites: true,
			GCInterval: 10 * time.Minute,
			CacheSize:  10000,
			CacheTTL:   5 * time.Minute,
		},
		Commands: CommandsConfig{
			SubjectPrefix: "iot.commands",
			Timeout:       30 * time.Second,
			MessageTTL:    time.Hour,
			RatePerSecond: 1,
			RateBurst:     5,
		},
		Twin: TwinConfig{
			Backend: "kv",
			Bucket:  "device-twins",
			Timeout: 10 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxChainDepth:   16,
			MaxMeasurements: 100,
			MaxAge:          24 * time.Hour,
			MaxFutureSkew:   5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, the optional config file and
// the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as a string.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0, strings.Count(s, ",")+1)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Variables not listed are ignored.
var envMappings = map[string]string{
	"http_host":                  "server.host",
	"http_port":                  "server.port",
	"http_read_timeout":          "server.read_timeout",
	"http_write_timeout":         "server.write_timeout",
	"http_shutdown_timeout":      "server.shutdown_timeout",
	"http_max_body_bytes":        "server.max_body_bytes",
	"rate_limit_requests":        "server.rate_limit_requests",
	"rate_limit_window":          "server.rate_limit_window",
	"disable_rate_limit":         "server.rate_limit_disabled",
	"cors_origins":               "server.cors_origins",
	"nats_url":                   "nats.url",
	"nats_embedded":              "nats.embedded_server",
	"nats_host":                  "nats.host",
	"nats_port":                  "nats.port",
	"nats_store_dir":             "nats.store_dir",
	"nats_max_memory":            "nats.max_memory",
	"nats_max_store":             "nats.max_store",
	"nats_stream_name":           "nats.stream_name",
	"nats_stream_max_age":        "nats.stream_max_age",
	"nats_duplicate_window":      "nats.duplicate_window",
	"nats_durable_prefix":        "nats.durable_prefix",
	"nats_subscribers":           "nats.subscribers_count",
	"nats_ack_wait":              "nats.ack_wait",
	"nats_max_deliver":           "nats.max_deliver",
	"nats_max_ack_pending":       "nats.max_ack_pending",
	"nats_router_retry_count":    "nats.router_retry_count",
	"nats_router_retry_interval": "nats.router_retry_initial_interval",
	"nats_router_throttle":       "nats.router_throttle_per_second",
	"nats_router_dedup_enabled":  "nats.router_deduplication_enabled",
	"nats_router_dedup_ttl":      "nats.router_deduplication_ttl",
	"nats_poison_topic":          "nats.poison_queue_topic",
	"nats_close_timeout":         "nats.close_timeout",
	"storage_backend":            "storage.backend",
	"storage_bronze_bucket":      "storage.bronze_bucket",
	"storage_silver_bucket":      "storage.silver_bucket",
	"storage_gold_bucket":        "storage.gold_bucket",
	"gold_flush_interval":        "storage.gold_flush_interval",
	"gold_retention":             "storage.gold_retention",
	"audit_backend":              "audit.backend",
	"duckdb_path":                "audit.path",
	"device_store_backend":       "devices.backend",
	"device_store_path":          "devices.path",
	"device_store_sync_writes":   "devices.sync_writes",
	"device_store_gc_interval":   "devices.gc_interval",
	"device_cache_size":          "devices.cache_size",
	"device_cache_ttl":           "devices.cache_ttl",
	"command_subject_prefix":     "commands.subject_prefix",
	"command_timeout":            "commands.timeout",
	"command_message_ttl":        "commands.message_ttl",
	"command_rate_per_second":    "commands.rate_per_second",
	"command_rate_burst":         "commands.rate_burst",
	"twin_backend":               "twin.backend",
	"twin_bucket":                "twin.bucket",
	"twin_timeout":               "twin.timeout",
	"pipeline_max_chain_depth":   "pipeline.max_chain_depth",
	"telemetry_max_measurements": "pipeline.max_measurements",
	"telemetry_max_age":          "pipeline.max_age",
	"telemetry_max_future_skew":  "pipeline.max_future_skew",
	"log_level":                  "logging.level",
	"log_format":                 "logging.format",
	"log_caller":                 "logging.caller",
}

// envTransformFunc maps an environment variable to its koanf path. An empty
// result tells the env provider to skip the variable.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
