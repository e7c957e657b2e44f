// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package devices

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/eventprocessor"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
	"github.com/tomtom215/iotpipeline/internal/validation"
)

// Lifecycle event types. Registry-qualified names such as
// "Microsoft.Devices.DeviceCreated" match by suffix.
const (
	EventDeviceCreated       = "DeviceCreated"
	EventDeviceDeleted       = "DeviceDeleted"
	EventDeviceStatusChanged = "DeviceStatusChanged"
)

// LifecycleEvent is the wire form of a message on the lifecycle subject.
type LifecycleEvent struct {
	DeviceID  string         `json:"deviceId" validate:"required,deviceid"`
	EventType string         `json:"eventType" validate:"required,max=256"`
	EventTime string         `json:"eventTime" validate:"omitempty,rfc3339"`
	Data      map[string]any `json:"data"`
}

// Decode parses a lifecycle event into its entry command.
func Decode(payload []byte, env eventprocessor.Envelope) (pipeline.Command, error) {
	var ev LifecycleEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode lifecycle event: %w", err)
	}
	if err := validation.Validate(&ev); err != nil {
		return nil, err
	}

	eventTime := env.EnqueuedAt
	if ev.EventTime != "" {
		t, err := time.Parse(time.RFC3339Nano, ev.EventTime)
		if err != nil {
			return nil, fmt.Errorf("parse eventTime: %w", err)
		}
		eventTime = t.UTC()
	}
	if eventTime.IsZero() {
		eventTime = env.ReceivedAt
	}

	id := domain.DeviceID(ev.DeviceID)
	switch {
	case matchesType(ev.EventType, EventDeviceCreated):
		return DeviceCreated{DeviceID: id, EventType: ev.EventType, EventTime: eventTime, Data: ev.Data}, nil
	case matchesType(ev.EventType, EventDeviceDeleted):
		return DeviceDeleted{DeviceID: id, EventType: ev.EventType, EventTime: eventTime}, nil
	case matchesType(ev.EventType, EventDeviceStatusChanged):
		raw, _ := ev.Data["action"].(string)
		action, ok := domain.ParseAction(raw)
		if !ok {
			return nil, fmt.Errorf("status change for %s: unknown action %q", id, raw)
		}
		return ChangeStatus{DeviceID: id, Action: action, EventTime: eventTime}, nil
	}
	return nil, fmt.Errorf("unsupported lifecycle event type %q", ev.EventType)
}

// Supported reports whether eventType is a lifecycle event the pipeline
// handles.
func Supported(eventType string) bool {
	return matchesType(eventType, EventDeviceCreated) ||
		matchesType(eventType, EventDeviceDeleted) ||
		matchesType(eventType, EventDeviceStatusChanged)
}

func matchesType(eventType, want string) bool {
	return eventType == want || strings.HasSuffix(eventType, "."+want)
}
