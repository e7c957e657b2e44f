// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package devicestore

import (
	"context"
	"errors"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// ErrClosed is returned after a store is closed.
var ErrClosed = errors.New("device store is closed")

// Repository persists devices. Save overwrites the device with the same ID.
type Repository interface {
	Get(ctx context.Context, id domain.DeviceID) domain.Result[domain.Device]
	Save(ctx context.Context, d domain.Device) error
	List(ctx context.Context) ([]domain.Device, error)
}

// MetadataLookup returns enrichment metadata for a device.
type MetadataLookup interface {
	Metadata(ctx context.Context, id domain.DeviceID) domain.Result[map[string]string]
}

// HasBeenProcessed reports whether a device with id is already registered.
func HasBeenProcessed(ctx context.Context, repo Repository, id domain.DeviceID) (bool, error) {
	_, found, err := repo.Get(ctx, id).Get()
	return found, err
}

// DeviceMetadata flattens d into enrichment metadata: its properties plus
// deviceName, deviceType, deviceStatus and, when set, location. The fixed
// keys win over properties of the same name.
func DeviceMetadata(d domain.Device) map[string]string {
	md := make(map[string]string, len(d.Properties)+4)
	for k, v := range d.Properties {
		md[k] = v
	}
	md["deviceName"] = d.Name
	md["deviceType"] = d.Type
	md["deviceStatus"] = d.Status.String()
	if d.Location != "" {
		md["location"] = d.Location
	}
	return md
}

// RepositoryLookup serves metadata straight from a Repository.
type RepositoryLookup struct {
	Repo Repository
}

func (l RepositoryLookup) Metadata(ctx context.Context, id domain.DeviceID) domain.Result[map[string]string] {
	d, found, err := l.Repo.Get(ctx, id).Get()
	switch {
	case err != nil:
		return domain.Failed[map[string]string](err)
	case !found:
		return domain.NotFound[map[string]string]()
	default:
		return domain.Found(DeviceMetadata(d))
	}
}
