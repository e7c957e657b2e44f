// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/validation"
)

// Validate checks field ranges with struct tags, then the rules that span
// fields.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	return errors.Join(
		c.validateNATS(),
		c.validateStorage(),
		c.validateStores(),
		c.validateCommands(),
		c.validatePipeline(),
		c.validateLogging(),
	)
}

func (c *Config) validateNATS() error {
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when the embedded server is enabled")
	}
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return fmt.Errorf("NATS_URL must use the nats:// or tls:// scheme, got %q", c.NATS.URL)
	}
	if c.NATS.RouterDeduplicationEnabled && c.NATS.RouterDeduplicationTTL < c.NATS.AckWait {
		return fmt.Errorf("NATS_ROUTER_DEDUP_TTL (%v) must cover NATS_ACK_WAIT (%v)",
			c.NATS.RouterDeduplicationTTL, c.NATS.AckWait)
	}
	return nil
}

func (c *Config) validateStorage() error {
	s := c.Storage
	if s.BronzeBucket == s.SilverBucket || s.SilverBucket == s.GoldBucket || s.BronzeBucket == s.GoldBucket {
		return fmt.Errorf("storage buckets must be distinct (bronze=%q silver=%q gold=%q)",
			s.BronzeBucket, s.SilverBucket, s.GoldBucket)
	}
	return nil
}

func (c *Config) validateStores() error {
	if c.Audit.Backend == "duckdb" && c.Audit.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required when AUDIT_BACKEND=duckdb")
	}
	if c.Devices.Backend == "badger" && c.Devices.Path == "" {
		return fmt.Errorf("DEVICE_STORE_PATH is required when DEVICE_STORE_BACKEND=badger")
	}
	return nil
}

func (c *Config) validateCommands() error {
	p := c.Commands.SubjectPrefix
	if strings.ContainsAny(p, " \t") || strings.HasPrefix(p, ".") || strings.HasSuffix(p, ".") {
		return fmt.Errorf("COMMAND_SUBJECT_PREFIX %q is not a valid subject prefix", p)
	}
	if c.Commands.Timeout > c.Commands.MessageTTL {
		return fmt.Errorf("COMMAND_TIMEOUT (%v) must not exceed COMMAND_MESSAGE_TTL (%v)",
			c.Commands.Timeout, c.Commands.MessageTTL)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxFutureSkew >= c.Pipeline.MaxAge {
		return fmt.Errorf("TELEMETRY_MAX_FUTURE_SKEW (%v) must be shorter than TELEMETRY_MAX_AGE (%v)",
			c.Pipeline.MaxFutureSkew, c.Pipeline.MaxAge)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	return nil
}
