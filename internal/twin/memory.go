// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package twin

import (
	"context"
	"maps"
	"sync"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// MemoryService is an in-memory Service.
type MemoryService struct {
	mu      sync.Mutex
	twins   map[domain.DeviceID]Twin
	deletes int
}

func NewMemoryService() *MemoryService {
	return &MemoryService{twins: make(map[domain.DeviceID]Twin)}
}

func (m *MemoryService) Upsert(ctx context.Context, d domain.Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.twins[d.ID] = FromDevice(d)
	return nil
}

func (m *MemoryService) Delete(ctx context.Context, id domain.DeviceID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.twins, id)
	m.deletes++
	return nil
}

func (m *MemoryService) Get(ctx context.Context, id domain.DeviceID) domain.Result[Twin] {
	if err := ctx.Err(); err != nil {
		return domain.Failed[Twin](err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.twins[id]
	if !ok {
		return domain.NotFound[Twin]()
	}
	t.Properties = maps.Clone(t.Properties)
	return domain.Found(t)
}

// Deletes counts Delete calls, including ones for absent twins.
func (m *MemoryService) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}
