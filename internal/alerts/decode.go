// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/eventprocessor"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
	"github.com/tomtom215/iotpipeline/internal/validation"
)

// alertIDNamespace seeds alert ids derived from non-UUID message ids.
var alertIDNamespace = uuid.MustParse("5b0c1a8e-3f7d-4c52-9d1e-6a2f4b8c9e01")

// Message is the wire form of an inbound alert.
type Message struct {
	DeviceID  string         `json:"deviceId" validate:"required,deviceid"`
	Severity  string         `json:"severity" validate:"max=32"`
	Message   string         `json:"message" validate:"required,max=4096"`
	Timestamp string         `json:"timestamp" validate:"omitempty,rfc3339"`
	Metadata  map[string]any `json:"metadata"`
}

// AlertID maps a message id to an alert id. A UUID is used as is; anything
// else yields the same name-based UUID every time.
func AlertID(messageID string) uuid.UUID {
	if id, err := uuid.Parse(messageID); err == nil && id != uuid.Nil {
		return id
	}
	return uuid.NewSHA1(alertIDNamespace, []byte(messageID))
}

// Decode parses an inbound alert into a ProcessAlert command. Unknown
// severities become Warning.
func Decode(payload []byte, env eventprocessor.Envelope) (pipeline.Command, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode alert: %w", err)
	}
	if err := validation.Validate(&m); err != nil {
		return nil, err
	}
	if strings.TrimSpace(env.MessageID) == "" {
		return nil, fmt.Errorf("alert message has no message id")
	}

	now := env.ReceivedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	t := env.EnqueuedAt
	if m.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		t = parsed
	}
	if t.IsZero() {
		t = now
	}
	ts, err := domain.NewTimestamp(t, now)
	if err != nil {
		return nil, err
	}

	severity, _ := domain.ParseSeverity(m.Severity)
	a, err := domain.NewAlert(AlertID(env.MessageID), domain.DeviceID(m.DeviceID), severity, m.Message, ts, m.Metadata, now)
	if err != nil {
		return nil, err
	}
	return ProcessAlert{Alert: a, MessageID: env.MessageID, EnqueuedTime: env.EnqueuedAt}, nil
}
