// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package storage

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// MemoryBlobStore keeps objects in a map. Used by tests and the memory backend.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	puts    int
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string]Object)}
}

func (m *MemoryBlobStore) Put(ctx context.Context, key string, data []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{
		Key:     key,
		Data:    slices.Clone(data),
		Headers: maps.Clone(headers),
	}
	m.puts++
	return nil
}

func (m *MemoryBlobStore) Get(ctx context.Context, key string) domain.Result[Object] {
	if err := ctx.Err(); err != nil {
		return domain.Failed[Object](err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return domain.NotFound[Object]()
	}
	obj.Data = slices.Clone(obj.Data)
	obj.Headers = maps.Clone(obj.Headers)
	return domain.Found(obj)
}

// Keys returns every stored key in sorted order.
func (m *MemoryBlobStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.objects))
}

// Puts returns how many writes were made, including overwrites.
func (m *MemoryBlobStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
