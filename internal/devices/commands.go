// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package devices

import (
	"time"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
)

const (
	KindCreated       pipeline.Kind = "device.created"
	KindDeleted       pipeline.Kind = "device.deleted"
	KindStatusChanged pipeline.Kind = "device.status_changed"
	KindSyncTwin      pipeline.Kind = "device.sync_twin"
)

// DeviceCreated registers a new device. Data may carry deviceName,
// deviceType, location and a properties object.
type DeviceCreated struct {
	DeviceID  domain.DeviceID
	EventType string
	EventTime time.Time
	Data      map[string]any
}

func (DeviceCreated) Kind() pipeline.Kind { return KindCreated }

type DeviceDeleted struct {
	DeviceID  domain.DeviceID
	EventType string
	EventTime time.Time
}

func (DeviceDeleted) Kind() pipeline.Kind { return KindDeleted }

// ChangeStatus applies a lifecycle action to a known device.
type ChangeStatus struct {
	DeviceID  domain.DeviceID
	Action    domain.Action
	EventTime time.Time
}

func (ChangeStatus) Kind() pipeline.Kind { return KindStatusChanged }

// SyncOperation says what to do with the twin.
type SyncOperation string

const (
	SyncCreateOrUpdate SyncOperation = "CreateOrUpdate"
	SyncDelete         SyncOperation = "Delete"
)

type SyncDigitalTwin struct {
	DeviceID  domain.DeviceID
	Operation SyncOperation
	Metadata  map[string]any
}

func (SyncDigitalTwin) Kind() pipeline.Kind { return KindSyncTwin }
