// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// MeasurementRecord is the stored form of a domain.Measurement.
type MeasurementRecord struct {
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
	Quality string  `json:"quality"`
}

// ReadingRecord is the JSON document written to bronze and silver.
type ReadingRecord struct {
	ID              uuid.UUID                    `json:"id"`
	DeviceID        string                       `json:"deviceId"`
	Timestamp       time.Time                    `json:"timestamp"`
	ReceivedAt      time.Time                    `json:"receivedAt"`
	IsValid         bool                         `json:"isValid"`
	ValidationError *string                      `json:"validationError"`
	Measurements    map[string]MeasurementRecord `json:"measurements"`
	Metadata        map[string]string            `json:"metadata,omitempty"`
}

// NewReadingRecord converts r. A nil metadata map is omitted from the document.
func NewReadingRecord(r domain.TelemetryReading, metadata map[string]string) ReadingRecord {
	rec := ReadingRecord{
		ID:           r.ID,
		DeviceID:     string(r.DeviceID),
		Timestamp:    r.Timestamp.Time().UTC(),
		ReceivedAt:   r.ReceivedAt.Time().UTC(),
		IsValid:      r.IsValid,
		Measurements: make(map[string]MeasurementRecord, len(r.Measurements)),
		Metadata:     metadata,
	}
	if r.ValidationError != "" {
		reason := r.ValidationError
		rec.ValidationError = &reason
	}
	for name, m := range r.Measurements {
		rec.Measurements[name] = MeasurementRecord{
			Value:   m.Value,
			Unit:    m.Unit,
			Quality: m.Quality.String(),
		}
	}
	return rec
}

// MeasurementAggregate summarizes one measurement name within an hour.
type MeasurementAggregate struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Unit  string  `json:"unit"`
}

// GoldReading identifies one reading counted in a GoldRecord.
type GoldReading struct {
	DeviceID  string    `json:"deviceId"`
	Timestamp time.Time `json:"timestamp"`
}

// GoldRecord is the hourly aggregate document. Readings lists every reading
// the totals include, ordered by device then timestamp, so a later writer can
// merge into the record without counting a reading twice.
type GoldRecord struct {
	Hour          time.Time                       `json:"hour"`
	TotalReadings int                             `json:"totalReadings"`
	DeviceCount   int                             `json:"deviceCount"`
	Measurements  map[string]MeasurementAggregate `json:"measurements"`
	Readings      []GoldReading                   `json:"readings"`
}
