// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package audit

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// MemoryStore implements Store in memory. Data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]Record)}
}

func (s *MemoryStore) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.Alert.Metadata = maps.Clone(rec.Alert.Metadata)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Alert.ID] = rec
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, alertID uuid.UUID) domain.Result[Record] {
	if err := ctx.Err(); err != nil {
		return domain.Failed[Record](err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[alertID]
	if !ok {
		return domain.NotFound[Record]()
	}
	rec.Alert.Metadata = maps.Clone(rec.Alert.Metadata)
	return domain.Found(rec)
}

// Query returns matching records, most recently processed first.
func (s *MemoryStore) Query(ctx context.Context, filter QueryFilter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []Record
	for _, rec := range s.records {
		if filter.matches(&rec) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ProcessedAt.After(out[j].ProcessedAt) })
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
