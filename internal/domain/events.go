// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is a fact raised by an entity transition or a pipeline stage.
// Events are returned to the caller, never stored on the entity.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

type TelemetryReceived struct {
	ReadingID        uuid.UUID
	DeviceID         DeviceID
	MeasurementCount int
	At               time.Time
}

func (TelemetryReceived) EventName() string      { return "TelemetryReceived" }
func (e TelemetryReceived) OccurredAt() time.Time { return e.At }

type TelemetryValidated struct {
	ReadingID uuid.UUID
	DeviceID  DeviceID
	IsValid   bool
	Reason    string
	At        time.Time
}

func (TelemetryValidated) EventName() string      { return "TelemetryValidated" }
func (e TelemetryValidated) OccurredAt() time.Time { return e.At }

type TelemetryEnriched struct {
	ReadingID     uuid.UUID
	DeviceID      DeviceID
	MetadataCount int
	At            time.Time
}

func (TelemetryEnriched) EventName() string      { return "TelemetryEnriched" }
func (e TelemetryEnriched) OccurredAt() time.Time { return e.At }

type TelemetryStored struct {
	ReadingID uuid.UUID
	DeviceID  DeviceID
	Tier      string
	Path      string
	At        time.Time
}

func (TelemetryStored) EventName() string      { return "TelemetryStored" }
func (e TelemetryStored) OccurredAt() time.Time { return e.At }

type AlertTriggered struct {
	AlertID  uuid.UUID
	DeviceID DeviceID
	Severity Severity
	Message  string
	At       time.Time
}

func (AlertTriggered) EventName() string      { return "AlertTriggered" }
func (e AlertTriggered) OccurredAt() time.Time { return e.At }

type AlertAudited struct {
	AlertID     uuid.UUID
	DeviceID    DeviceID
	CommandSent bool
	At          time.Time
}

func (AlertAudited) EventName() string      { return "AlertAudited" }
func (e AlertAudited) OccurredAt() time.Time { return e.At }

type DeviceRegistered struct {
	DeviceID DeviceID
	Name     string
	Type     string
	At       time.Time
}

func (DeviceRegistered) EventName() string      { return "DeviceRegistered" }
func (e DeviceRegistered) OccurredAt() time.Time { return e.At }

type DeviceStatusChanged struct {
	DeviceID DeviceID
	From     DeviceStatus
	To       DeviceStatus
	Action   Action
	At       time.Time
}

func (DeviceStatusChanged) EventName() string      { return "DeviceStatusChanged" }
func (e DeviceStatusChanged) OccurredAt() time.Time { return e.At }
