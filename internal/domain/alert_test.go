// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func mustAlert(t *testing.T, sev Severity) Alert {
	t.Helper()
	a, err := NewAlert(uuid.Nil, "dev-1", sev, "over temperature", TimestampAt(testNow), map[string]any{"zone": "A"}, testNow)
	if err != nil {
		t.Fatalf("NewAlert() error = %v", err)
	}
	return a
}

func TestNewAlert(t *testing.T) {
	t.Parallel()

	if _, err := NewAlert(uuid.Nil, "dev-1", SeverityError, "  ", TimestampAt(testNow), nil, testNow); ViolationRule(err) != RuleAlertMessage {
		t.Errorf("empty message error = %v, want alert message violation", err)
	}
	if _, err := NewAlert(uuid.Nil, "dev-1", SeverityError, "x", TimestampAt(testNow), map[string]any{"": 1}, testNow); ViolationRule(err) != RuleMetadataKey {
		t.Errorf("empty metadata key error = %v, want metadata key violation", err)
	}

	id := uuid.New()
	a, err := NewAlert(id, "dev-1", SeverityInfo, "x", TimestampAt(testNow), nil, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != id {
		t.Errorf("ID = %v, want %v", a.ID, id)
	}
	if a.Metadata == nil {
		t.Error("Metadata is nil, want empty map")
	}
}

func TestAlert_RequiresImmediateAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity     Severity
		acknowledged bool
		want         bool
	}{
		{SeverityInfo, false, false},
		{SeverityWarning, false, false},
		{SeverityError, false, true},
		{SeverityCritical, false, true},
		{SeverityError, true, false},
		{SeverityCritical, true, false},
	}

	for _, tt := range tests {
		a := mustAlert(t, tt.severity)
		if tt.acknowledged {
			var err error
			if a, err = a.Acknowledge("operator", "", testNow); err != nil {
				t.Fatal(err)
			}
		}
		if got := a.RequiresImmediateAction(); got != tt.want {
			t.Errorf("RequiresImmediateAction(%v, ack=%v) = %v, want %v", tt.severity, tt.acknowledged, got, tt.want)
		}
	}
}

func TestAlert_Acknowledge(t *testing.T) {
	t.Parallel()

	a := mustAlert(t, SeverityCritical)

	if _, err := a.Acknowledge("", "", testNow); ViolationRule(err) != RuleAcknowledgment {
		t.Errorf("empty acknowledgedBy error = %v", err)
	}
	if _, err := a.UpdateResolution("fixed"); !IsViolation(err) {
		t.Errorf("UpdateResolution before ack error = %v, want violation", err)
	}

	acked, err := a.Acknowledge("operator", "reset breaker", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if !acked.IsAcknowledged || acked.AcknowledgedBy != "operator" || acked.AcknowledgedAt == nil {
		t.Errorf("acknowledged alert = %+v", acked)
	}
	if a.IsAcknowledged {
		t.Error("receiver mutated")
	}
	if _, err := acked.Acknowledge("other", "", testNow); !IsViolation(err) {
		t.Errorf("double acknowledge error = %v, want violation", err)
	}

	resolved, err := acked.UpdateResolution("replaced sensor")
	if err != nil || resolved.Resolution != "replaced sensor" {
		t.Errorf("UpdateResolution() = %q, %v", resolved.Resolution, err)
	}
}

func TestAlert_WithMetadata(t *testing.T) {
	t.Parallel()

	a := mustAlert(t, SeverityError)
	b, err := a.WithMetadata("commandSent", true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.Metadata["commandSent"]; ok {
		t.Error("receiver metadata mutated")
	}
	if b.Metadata["commandSent"] != true || b.Metadata["zone"] != "A" {
		t.Errorf("Metadata = %v", b.Metadata)
	}
	if _, err := a.WithMetadata(" ", 1); !IsViolation(err) {
		t.Errorf("blank key error = %v, want violation", err)
	}
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   Severity
		wantOK bool
	}{
		{"critical", SeverityCritical, true},
		{"ERROR", SeverityError, true},
		{" Info ", SeverityInfo, true},
		{"warning", SeverityWarning, true},
		{"catastrophic", SeverityWarning, false},
		{"", SeverityWarning, false},
	}
	for _, tt := range tests {
		got, ok := ParseSeverity(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseSeverity(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestResult(t *testing.T) {
	t.Parallel()

	found := Found(42)
	if v, ok := found.Value(); !ok || v != 42 || found.Failed() {
		t.Errorf("Found(42) = %v, %v, failed=%v", v, ok, found.Failed())
	}

	missing := NotFound[int]()
	if missing.Found() || missing.Failed() || missing.Err() != nil {
		t.Error("NotFound() should be neither found nor failed")
	}

	boom := errors.New("boom")
	failed := Failed[int](boom)
	if !failed.Failed() || failed.Found() || !errors.Is(failed.Err(), boom) {
		t.Error("Failed() did not carry error")
	}
}
