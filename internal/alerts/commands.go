// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package alerts

import (
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
)

const (
	KindProcess     pipeline.Kind = "alert.process"
	KindSendCommand pipeline.Kind = "alert.send_command"
	KindAudit       pipeline.Kind = "alert.audit"
)

// CommandHandleAlert is the device command raised for actionable alerts.
const CommandHandleAlert = "HandleAlert"

// Audit result texts.
const (
	ResultDelivered = "Command delivered successfully"
	ResultFailed    = "Command delivery failed"
	ResultTimedOut  = "Command delivery timed out"
)

// ProcessAlert is the entry command, one per inbound message.
type ProcessAlert struct {
	Alert        domain.Alert
	MessageID    string
	EnqueuedTime time.Time
}

func (ProcessAlert) Kind() pipeline.Kind { return KindProcess }

// SendDeviceCommand carries the alert it was raised for so the audit record
// keeps the original severity.
type SendDeviceCommand struct {
	Alert       domain.Alert
	DeviceID    domain.DeviceID
	CommandName string
	Payload     map[string]any
	AlertID     uuid.UUID
}

func (SendDeviceCommand) Kind() pipeline.Kind { return KindSendCommand }

type AuditAlert struct {
	Alert         domain.Alert
	CommandSent   bool
	CommandResult string
}

func (AuditAlert) Kind() pipeline.Kind { return KindAudit }
