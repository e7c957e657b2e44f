// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	messageIDKey     contextKey = "message_id"
	deviceIDKey      contextKey = "device_id"
	loggerKey        contextKey = "logger"
)

// GenerateCorrelationID returns the first 8 characters of a UUID.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID attaches a fresh correlation ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// ContextWithMessageID records the transport message being processed.
func ContextWithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey, id)
}

func MessageIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(messageIDKey).(string)
	return id
}

// ContextWithDeviceID records the device a cascade is working on.
func ContextWithDeviceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deviceIDKey, id)
}

func DeviceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deviceIDKey).(string)
	return id
}

// ContextWithLogger stores a pre-configured logger for Ctx to start from.
//
//nolint:gocritic // zerolog.Logger is passed by value by design of the library
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Ctx returns a logger carrying the identifiers stored on ctx.
//
//	logging.Ctx(ctx).Warn().Msg("Device not found, using empty metadata")
func Ctx(ctx context.Context) *zerolog.Logger {
	base, ok := ctx.Value(loggerKey).(zerolog.Logger)
	if !ok {
		base = Logger()
	}

	c := base.With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		c = c.Str("correlation_id", id)
	}
	if id := MessageIDFromContext(ctx); id != "" {
		c = c.Str("message_id", id)
	}
	if id := DeviceIDFromContext(ctx); id != "" {
		c = c.Str("device_id", id)
	}
	l := c.Logger()
	return &l
}
