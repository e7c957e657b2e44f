// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package domain

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity orders alerts from Info to Critical.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

var severityNames = [...]string{
	SeverityInfo:     "Info",
	SeverityWarning:  "Warning",
	SeverityError:    "Error",
	SeverityCritical: "Critical",
}

func (s Severity) String() string {
	if s >= 0 && int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "Severity(" + strconv.Itoa(int(s)) + ")"
}

// ParseSeverity matches s case-insensitively. Unknown values map to
// SeverityWarning with ok=false.
func ParseSeverity(s string) (sev Severity, ok bool) {
	for i, name := range severityNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Severity(i), true
		}
	}
	return SeverityWarning, false
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, ok := ParseSeverity(string(b))
	if !ok {
		return fmt.Errorf("unknown severity %q", string(b))
	}
	*s = v
	return nil
}

// Alert is one inbound alert event and, once audited, its processing record.
type Alert struct {
	ID             uuid.UUID      `json:"id"`
	DeviceID       DeviceID       `json:"deviceId"`
	Severity       Severity       `json:"severity"`
	Message        string         `json:"message"`
	Timestamp      time.Time      `json:"timestamp"`
	CreatedAt      time.Time      `json:"createdAt"`
	IsAcknowledged bool           `json:"isAcknowledged"`
	AcknowledgedAt *time.Time     `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string         `json:"acknowledgedBy,omitempty"`
	Resolution     string         `json:"resolution,omitempty"`
	Metadata       map[string]any `json:"metadata"`
}

// NewAlert builds an alert with the given id. Pass uuid.Nil to generate one.
// metadata is shallow-copied.
func NewAlert(id uuid.UUID, deviceID DeviceID, severity Severity, message string, ts Timestamp, metadata map[string]any, now time.Time) (Alert, error) {
	if deviceID == "" {
		return Alert{}, violationf(RuleAlertMessage, "device ID is required")
	}
	if strings.TrimSpace(message) == "" {
		return Alert{}, violationf(RuleAlertMessage, "alert message cannot be empty")
	}
	if severity < SeverityInfo || severity > SeverityCritical {
		return Alert{}, violationf(RuleAlertMessage, "unknown severity %d", int(severity))
	}
	for k := range metadata {
		if strings.TrimSpace(k) == "" {
			return Alert{}, violationf(RuleMetadataKey, "metadata key cannot be empty")
		}
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	md := maps.Clone(metadata)
	if md == nil {
		md = map[string]any{}
	}
	return Alert{
		ID:        id,
		DeviceID:  deviceID,
		Severity:  severity,
		Message:   message,
		Timestamp: ts.Time(),
		CreatedAt: now.UTC(),
		Metadata:  md,
	}, nil
}

// RequiresImmediateAction is true for unacknowledged Error and Critical alerts.
func (a Alert) RequiresImmediateAction() bool {
	return a.Severity >= SeverityError && !a.IsAcknowledged
}

// Acknowledge marks the alert handled by acknowledgedBy.
func (a Alert) Acknowledge(acknowledgedBy, resolution string, now time.Time) (Alert, error) {
	if a.IsAcknowledged {
		return a, violationf(RuleAcknowledgment, "alert %s is already acknowledged", a.ID)
	}
	if strings.TrimSpace(acknowledgedBy) == "" {
		return a, violationf(RuleAcknowledgment, "acknowledgedBy cannot be empty")
	}
	a = a.clone()
	at := now.UTC()
	a.IsAcknowledged = true
	a.AcknowledgedAt = &at
	a.AcknowledgedBy = acknowledgedBy
	a.Resolution = resolution
	return a, nil
}

// UpdateResolution is only allowed once the alert is acknowledged.
func (a Alert) UpdateResolution(resolution string) (Alert, error) {
	if !a.IsAcknowledged {
		return a, violationf(RuleAcknowledgment, "cannot update resolution for an unacknowledged alert")
	}
	a = a.clone()
	a.Resolution = resolution
	return a, nil
}

// WithMetadata returns a copy of a with key set to value.
func (a Alert) WithMetadata(key string, value any) (Alert, error) {
	if strings.TrimSpace(key) == "" {
		return a, violationf(RuleMetadataKey, "metadata key cannot be empty")
	}
	a = a.clone()
	a.Metadata[key] = value
	return a, nil
}

// Age is measured from CreatedAt.
func (a Alert) Age(now time.Time) time.Duration {
	return now.Sub(a.CreatedAt)
}

func (a Alert) clone() Alert {
	a.Metadata = maps.Clone(a.Metadata)
	if a.Metadata == nil {
		a.Metadata = map[string]any{}
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		a.AcknowledgedAt = &t
	}
	return a
}
