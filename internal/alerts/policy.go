// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package alerts

import (
	"maps"
	"time"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// Evaluate returns the device command for a, or nil when a does not require
// immediate action. The payload is the alert's metadata plus alertId,
// severity, message and timestamp; the fixed keys win.
func Evaluate(a domain.Alert) *SendDeviceCommand {
	if !a.RequiresImmediateAction() {
		return nil
	}

	payload := make(map[string]any, len(a.Metadata)+4)
	maps.Copy(payload, a.Metadata)
	payload["alertId"] = a.ID.String()
	payload["severity"] = a.Severity.String()
	payload["message"] = a.Message
	payload["timestamp"] = a.Timestamp.UTC().Format(time.RFC3339Nano)

	return &SendDeviceCommand{
		Alert:       a,
		DeviceID:    a.DeviceID,
		CommandName: CommandHandleAlert,
		Payload:     payload,
		AlertID:     a.ID,
	}
}
