// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package domain

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TelemetryReading is one reading as received from a device. The value is
// owned by the pipeline run processing it and is only changed by MarkInvalid.
type TelemetryReading struct {
	ID              uuid.UUID
	DeviceID        DeviceID
	Timestamp       Timestamp
	ReceivedAt      Timestamp
	Measurements    map[string]Measurement
	IsValid         bool
	ValidationError string
}

// NewTelemetryReading creates a valid reading with a fresh ID. The measurements
// map is copied.
func NewTelemetryReading(deviceID DeviceID, ts Timestamp, measurements map[string]Measurement, receivedAt time.Time) (TelemetryReading, error) {
	if deviceID == "" {
		return TelemetryReading{}, violationf(RuleReading, "device ID is required")
	}
	if ts.IsZero() {
		return TelemetryReading{}, violationf(RuleReading, "timestamp is required")
	}
	if len(measurements) == 0 {
		return TelemetryReading{}, violationf(RuleReading, "telemetry reading must have at least one measurement")
	}
	for name := range measurements {
		if strings.TrimSpace(name) == "" {
			return TelemetryReading{}, violationf(RuleReading, "measurement name cannot be empty")
		}
	}
	return TelemetryReading{
		ID:           uuid.New(),
		DeviceID:     deviceID,
		Timestamp:    ts,
		ReceivedAt:   TimestampAt(receivedAt),
		Measurements: maps.Clone(measurements),
		IsValid:      true,
	}, nil
}

// MarkInvalid returns a copy of r flagged invalid with reason. A reading can
// only be invalidated once.
func (r TelemetryReading) MarkInvalid(reason string) (TelemetryReading, error) {
	if strings.TrimSpace(reason) == "" {
		return r, violationf(RuleReading, "validation error reason cannot be empty")
	}
	if !r.IsValid {
		return r, violationf(RuleReading, "reading %s is already marked invalid", r.ID)
	}
	r.IsValid = false
	r.ValidationError = reason
	return r, nil
}

// HasBadQuality reports whether any measurement has QualityBad.
func (r TelemetryReading) HasBadQuality() bool {
	for _, m := range r.Measurements {
		if m.Quality == QualityBad {
			return true
		}
	}
	return false
}

// Measurement looks up a measurement by name.
func (r TelemetryReading) Measurement(name string) (Measurement, bool) {
	m, ok := r.Measurements[name]
	return m, ok
}

// Age is the time elapsed between the device timestamp and now.
func (r TelemetryReading) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp.Time())
}
