// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// Record is the audit entry for one alert.
type Record struct {
	Alert         domain.Alert
	CommandSent   bool
	CommandResult string
	ProcessedAt   time.Time
}

// QueryFilter narrows Query results. Zero values match everything.
type QueryFilter struct {
	DeviceID    domain.DeviceID
	MinSeverity domain.Severity
	CommandSent *bool
	Since       time.Time
	Limit       int
}

// Store persists audit records. Save overwrites the record of the same alert.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, alertID uuid.UUID) domain.Result[Record]
	Query(ctx context.Context, filter QueryFilter) ([]Record, error)
}

// HasBeenProcessed reports whether an audit record exists for alertID.
func HasBeenProcessed(ctx context.Context, s Store, alertID uuid.UUID) (bool, error) {
	_, found, err := s.Get(ctx, alertID).Get()
	return found, err
}

func (f QueryFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return 100
	}
	return f.Limit
}

func (f QueryFilter) matches(rec *Record) bool {
	if f.DeviceID != "" && rec.Alert.DeviceID != f.DeviceID {
		return false
	}
	if rec.Alert.Severity < f.MinSeverity {
		return false
	}
	if f.CommandSent != nil && rec.CommandSent != *f.CommandSent {
		return false
	}
	if !f.Since.IsZero() && rec.ProcessedAt.Before(f.Since) {
		return false
	}
	return true
}
