// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxDeviceIDLength is the longest device identifier accepted.
const MaxDeviceIDLength = 128

// Clock-skew window accepted by NewTimestamp.
const (
	MaxTimestampFutureSkew = time.Hour
	MaxTimestampAge        = 10 * 365 * 24 * time.Hour
)

// DeviceID identifies a device. Compare with ==.
type DeviceID string

// NewDeviceID validates s and returns it as a DeviceID.
func NewDeviceID(s string) (DeviceID, error) {
	if strings.TrimSpace(s) == "" {
		return "", violationf(RuleDeviceID, "device ID cannot be empty")
	}
	if len(s) > MaxDeviceIDLength {
		return "", violationf(RuleDeviceID, "device ID cannot exceed %d characters", MaxDeviceIDLength)
	}
	for i := 0; i < len(s); i++ {
		if !isDeviceIDChar(s[i]) {
			return "", violationf(RuleDeviceID,
				"device ID can only contain alphanumeric characters, '-', '.', '_', and ':' (got %q)", s)
		}
	}
	return DeviceID(s), nil
}

func isDeviceIDChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == ':':
		return true
	}
	return false
}

func (id DeviceID) String() string { return string(id) }

// Timestamp is a UTC instant that passed the clock-skew guard.
type Timestamp struct {
	t time.Time
}

// NewTimestamp validates t against now and normalizes it to UTC.
func NewTimestamp(t, now time.Time) (Timestamp, error) {
	if t.IsZero() {
		return Timestamp{}, violationf(RuleTimestamp, "timestamp is required")
	}
	if t.After(now.Add(MaxTimestampFutureSkew)) {
		return Timestamp{}, violationf(RuleTimestamp, "timestamp cannot be more than 1 hour in the future")
	}
	if t.Before(now.Add(-MaxTimestampAge)) {
		return Timestamp{}, violationf(RuleTimestamp, "timestamp cannot be older than 10 years")
	}
	return Timestamp{t: t.UTC()}, nil
}

// TimestampAt wraps t without the skew guard. Use it for clock-derived values
// such as receipt times.
func TimestampAt(t time.Time) Timestamp {
	return Timestamp{t: t.UTC()}
}

func (ts Timestamp) Time() time.Time { return ts.t }

func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

// Equal compares instants, ignoring monotonic clock readings.
func (ts Timestamp) Equal(other Timestamp) bool { return ts.t.Equal(other.t) }

func (ts Timestamp) String() string { return ts.t.Format(time.RFC3339Nano) }

// Quality grades how trustworthy a measurement is.
type Quality int

const (
	QualityGood Quality = iota
	QualityUncertain
	QualityBad
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "Good"
	case QualityUncertain:
		return "Uncertain"
	case QualityBad:
		return "Bad"
	default:
		return "Quality(" + strconv.Itoa(int(q)) + ")"
	}
}

// ParseQuality accepts the String form case-insensitively.
func ParseQuality(s string) (Quality, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "good":
		return QualityGood, true
	case "uncertain":
		return QualityUncertain, true
	case "bad":
		return QualityBad, true
	}
	return QualityGood, false
}

// Measurement is a single sensor value. It is comparable with ==.
type Measurement struct {
	Value   float64
	Unit    string
	Quality Quality
}

// NewMeasurement validates value and unit.
func NewMeasurement(value float64, unit string, quality Quality) (Measurement, error) {
	if strings.TrimSpace(unit) == "" {
		return Measurement{}, violationf(RuleMeasurement, "unit cannot be empty")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Measurement{}, violationf(RuleMeasurement, "value must be a finite number")
	}
	if quality < QualityGood || quality > QualityBad {
		return Measurement{}, violationf(RuleMeasurement, "unknown quality %d", int(quality))
	}
	return Measurement{Value: value, Unit: unit, Quality: quality}, nil
}

func (m Measurement) String() string {
	return strconv.FormatFloat(m.Value, 'g', -1, 64) + " " + m.Unit + " (" + m.Quality.String() + ")"
}
