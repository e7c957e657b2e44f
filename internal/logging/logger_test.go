// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if i := strings.LastIndex(line, "\n"); i >= 0 {
		line = line[i+1:]
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("log line %q is not JSON: %v", line, err)
	}
	return m
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" || cfg.Format != "json" || !cfg.Timestamp || cfg.Caller {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}

func TestInit_JSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Debug().Str("stage", "bronze").Msg("stored")

	m := decodeLine(t, &buf)
	if m["message"] != "stored" || m["stage"] != "bronze" || m["level"] != "debug" {
		t.Errorf("entry = %v", m)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if ValidLevel("nonsense") || !ValidLevel("warn") {
		t.Error("ValidLevel() disagrees with parseLevel")
	}
}

func TestCtx_AddsIdentifiers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithCorrelationID(ctx, "abc12345")
	ctx = ContextWithMessageID(ctx, "msg-1")
	ctx = ContextWithDeviceID(ctx, "dev-1")

	Ctx(ctx).Info().Msg("processing")

	m := decodeLine(t, &buf)
	for k, want := range map[string]string{"correlation_id": "abc12345", "message_id": "msg-1", "device_id": "dev-1"} {
		if m[k] != want {
			t.Errorf("%s = %v, want %s", k, m[k], want)
		}
	}
}

func TestCtx_OmitsMissingIdentifiers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	Ctx(ctx).Info().Msg("bare")

	m := decodeLine(t, &buf)
	if _, ok := m["correlation_id"]; ok {
		t.Errorf("unexpected correlation_id in %v", m)
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	t.Parallel()

	a, b := GenerateCorrelationID(), GenerateCorrelationID()
	if len(a) != 8 || a == b {
		t.Errorf("GenerateCorrelationID() = %q, %q", a, b)
	}
}

func TestSlogHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(NewTestLogger(&buf)))
	logger.WithGroup("svc").With("name", "router").Warn("restarting", "attempt", 3)

	m := decodeLine(t, &buf)
	if m["level"] != "warn" || m["message"] != "restarting" {
		t.Errorf("entry = %v", m)
	}
	if m["svc.name"] != "router" || m["svc.attempt"] != float64(3) {
		t.Errorf("grouped attrs missing: %v", m)
	}
}

func TestWatermillAdapter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var adapter watermill.LoggerAdapter = NewWatermillAdapterWithLogger(NewTestLogger(&buf), false)
	adapter = adapter.With(watermill.LogFields{"topic": "telemetry.raw"})

	adapter.Error("handler failed", errors.New("boom"), watermill.LogFields{"attempt": 2})
	m := decodeLine(t, &buf)
	if m["level"] != "error" || m["error"] != "boom" || m["topic"] != "telemetry.raw" {
		t.Errorf("entry = %v", m)
	}

	buf.Reset()
	promoted := NewWatermillAdapterWithLogger(NewTestLogger(&buf), true)
	promoted.Info("subscriber started", watermill.LogFields{"durable": "telemetry"})
	if m := decodeLine(t, &buf); m["level"] != "info" || m["durable"] != "telemetry" {
		t.Errorf("entry = %v", m)
	}
}
