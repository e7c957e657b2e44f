// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package devicestore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// MemoryStore is an in-memory Repository.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[domain.DeviceID]domain.Device
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[domain.DeviceID]domain.Device)}
}

func (s *MemoryStore) Get(ctx context.Context, id domain.DeviceID) domain.Result[domain.Device] {
	if err := ctx.Err(); err != nil {
		return domain.Failed[domain.Device](err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return domain.NotFound[domain.Device]()
	}
	return domain.Found(copyDevice(d))
}

func (s *MemoryStore) Save(ctx context.Context, d domain.Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.ID] = copyDevice(d)
	return nil
}

// List returns all devices ordered by ID.
func (s *MemoryStore) List(ctx context.Context) ([]domain.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Device, 0, len(s.devices))
	for _, id := range slices.Sorted(maps.Keys(s.devices)) {
		out = append(out, copyDevice(s.devices[id]))
	}
	return out, nil
}

func copyDevice(d domain.Device) domain.Device {
	d.Properties = maps.Clone(d.Properties)
	return d
}
