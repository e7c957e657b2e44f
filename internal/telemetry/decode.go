// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/eventprocessor"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
)

const defaultUnit = "unknown"

var errNoMeasurements = errors.New("telemetry has no measurements")

// Decode parses a device telemetry message into a ProcessTelemetry command.
//
// Accepted shapes:
//
//	{"deviceId": "d1", "timestamp": "...", "measurements": {"temp": 21.5, "temp_unit": "C"}}
//	{"deviceId": "d1", "temp": 21.5, "temp_unit": "C", "temp_quality": "Uncertain"}
//
// Without a measurements object every numeric top-level field other than
// timestamp and deviceId is a measurement. The timestamp defaults to the
// enqueued time, then to the receive time.
func Decode(payload []byte, env eventprocessor.Envelope) (pipeline.Command, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode telemetry: %w", err)
	}

	now := env.ReceivedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	idStr, _ := raw["deviceId"].(string)
	deviceID, err := domain.NewDeviceID(strings.TrimSpace(idStr))
	if err != nil {
		return nil, err
	}

	ts, err := decodeTimestamp(raw, env, now)
	if err != nil {
		return nil, err
	}

	var measurements map[string]domain.Measurement
	if obj, ok := raw["measurements"].(map[string]any); ok {
		measurements, err = decodeMeasurements(obj, nil)
	} else {
		measurements, err = decodeMeasurements(raw, map[string]bool{"timestamp": true, "deviceId": true})
	}
	if err != nil {
		return nil, err
	}
	if len(measurements) == 0 {
		return nil, fmt.Errorf("device %s: %w", deviceID, errNoMeasurements)
	}

	reading, err := domain.NewTelemetryReading(deviceID, ts, measurements, now)
	if err != nil {
		return nil, err
	}
	return ProcessTelemetry{
		Reading:        reading,
		PartitionID:    env.Partition,
		SequenceNumber: env.Sequence,
	}, nil
}

func decodeTimestamp(raw map[string]any, env eventprocessor.Envelope, now time.Time) (domain.Timestamp, error) {
	t := env.EnqueuedAt
	if v, ok := raw["timestamp"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return domain.Timestamp{}, fmt.Errorf("timestamp must be a string, got %T", v)
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return domain.Timestamp{}, fmt.Errorf("parse timestamp: %w", err)
		}
		t = parsed
	}
	if t.IsZero() {
		t = now
	}
	return domain.NewTimestamp(t, now)
}

// decodeMeasurements turns every numeric field of obj, except skip, into a
// measurement. Units and qualities come from "<name>_unit" and
// "<name>_quality" siblings.
func decodeMeasurements(obj map[string]any, skip map[string]bool) (map[string]domain.Measurement, error) {
	out := make(map[string]domain.Measurement)
	for name, v := range obj {
		value, ok := v.(float64)
		if !ok || skip[name] {
			continue
		}

		unit := defaultUnit
		if u, ok := obj[name+"_unit"].(string); ok && strings.TrimSpace(u) != "" {
			unit = u
		}
		quality := domain.QualityGood
		if q, ok := obj[name+"_quality"].(string); ok {
			if quality, ok = domain.ParseQuality(q); !ok {
				return nil, fmt.Errorf("measurement %s: unknown quality %q", name, q)
			}
		}

		m, err := domain.NewMeasurement(value, unit, quality)
		if err != nil {
			return nil, fmt.Errorf("measurement %s: %w", name, err)
		}
		out[name] = m
	}
	return out, nil
}
