// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package twin

import (
	"context"
	"strings"
	"time"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// DeviceModelID is the model every device twin declares.
const DeviceModelID = "dtmi:com:iot:Device;1"

type Metadata struct {
	ModelID string `json:"modelId"`
}

// Twin is the document stored for one device.
type Twin struct {
	Metadata       Metadata          `json:"metadata"`
	DeviceID       domain.DeviceID   `json:"deviceId"`
	Name           string            `json:"name"`
	Type           string            `json:"type"`
	Status         string            `json:"status"`
	Location       string            `json:"location,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	LastModifiedAt *time.Time        `json:"lastModifiedAt,omitempty"`
	LastSeenAt     *time.Time        `json:"lastSeenAt,omitempty"`
	Properties     map[string]string `json:"properties"`
}

// FromDevice builds the twin document for d.
func FromDevice(d domain.Device) Twin {
	props := make(map[string]string, len(d.Properties))
	for k, v := range d.Properties {
		props[k] = v
	}
	return Twin{
		Metadata:       Metadata{ModelID: DeviceModelID},
		DeviceID:       d.ID,
		Name:           d.Name,
		Type:           d.Type,
		Status:         d.Status.String(),
		Location:       d.Location,
		CreatedAt:      d.CreatedAt,
		LastModifiedAt: d.LastModifiedAt,
		LastSeenAt:     d.LastSeenAt,
		Properties:     props,
	}
}

// Service manages device twins.
type Service interface {
	// Upsert creates the twin or replaces it.
	Upsert(ctx context.Context, d domain.Device) error
	// Delete removes the twin. A twin that does not exist is not an error.
	Delete(ctx context.Context, id domain.DeviceID) error
	Get(ctx context.Context, id domain.DeviceID) domain.Result[Twin]
}

// key maps a device ID onto the KV key alphabet. Device IDs may contain ':'
// which KV keys do not allow; '=' never appears in a device ID.
func key(id domain.DeviceID) string {
	return strings.ReplaceAll(string(id), ":", "=")
}
