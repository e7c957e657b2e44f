// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package telemetry

import (
	"fmt"
	"time"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// Rejection rules, in the order they are checked.
const (
	RuleBadQuality          = "bad_quality"
	RuleTooManyMeasurements = "too_many_measurements"
	RuleTooOld              = "too_old"
	RuleFutureTimestamp     = "future_timestamp"
)

// ValidatorConfig holds the acceptance limits.
type ValidatorConfig struct {
	MaxMeasurements int
	MaxAge          time.Duration
	MaxFutureSkew   time.Duration
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxMeasurements: 100,
		MaxAge:          24 * time.Hour,
		MaxFutureSkew:   5 * time.Minute,
	}
}

// Rejection says why a reading was not accepted.
type Rejection struct {
	Rule   string
	Reason string
}

// Validator decides whether a reading is accepted. The first failing rule
// wins. It depends only on the reading and the clock.
type Validator struct {
	cfg ValidatorConfig
	now func() time.Time
}

// NewValidator creates a validator. Zero limits fall back to the defaults and
// a nil clock to time.Now.
func NewValidator(cfg ValidatorConfig, now func() time.Time) *Validator {
	def := DefaultValidatorConfig()
	if cfg.MaxMeasurements <= 0 {
		cfg.MaxMeasurements = def.MaxMeasurements
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.MaxFutureSkew <= 0 {
		cfg.MaxFutureSkew = def.MaxFutureSkew
	}
	if now == nil {
		now = time.Now
	}
	return &Validator{cfg: cfg, now: now}
}

// Validate returns nil when r is accepted.
func (v *Validator) Validate(r domain.TelemetryReading) *Rejection {
	if r.HasBadQuality() {
		return &Rejection{Rule: RuleBadQuality, Reason: "Telemetry contains bad quality measurements"}
	}
	if len(r.Measurements) > v.cfg.MaxMeasurements {
		return &Rejection{
			Rule:   RuleTooManyMeasurements,
			Reason: fmt.Sprintf("Telemetry exceeds maximum of %d measurements", v.cfg.MaxMeasurements),
		}
	}

	now := v.now()
	if age := r.Age(now); age > v.cfg.MaxAge {
		return &Rejection{
			Rule: RuleTooOld,
			Reason: fmt.Sprintf("Telemetry is too old (%.1f hours, max %d hours)",
				age.Hours(), int(v.cfg.MaxAge.Hours())),
		}
	}
	if r.Timestamp.Time().After(now.Add(v.cfg.MaxFutureSkew)) {
		return &Rejection{Rule: RuleFutureTimestamp, Reason: "Telemetry timestamp is in the future"}
	}
	return nil
}
