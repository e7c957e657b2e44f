// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

//go:build integration

package audit

import (
	"context"
	"testing"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

func newTestDuckDBStore(t *testing.T) *DuckDBStore {
	t.Helper()
	db, err := OpenDuckDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDuckDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewDuckDBStore(db)
	if err := s.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return s
}

func TestDuckDBStore(t *testing.T) {
	storeContract(t, newTestDuckDBStore(t))
}

func TestDuckDBStore_CreateTableIsIdempotent(t *testing.T) {
	s := newTestDuckDBStore(t)
	if err := s.CreateTable(context.Background()); err != nil {
		t.Fatalf("second CreateTable: %v", err)
	}
}

func TestDuckDBStore_CountBySeverity(t *testing.T) {
	s := newTestDuckDBStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, newRecord(t, "dev-1", domain.SeverityCritical, true, processedAt))
	_ = s.Save(ctx, newRecord(t, "dev-2", domain.SeverityCritical, false, processedAt))
	_ = s.Save(ctx, newRecord(t, "dev-3", domain.SeverityInfo, false, processedAt))

	counts, err := s.CountBySeverity(ctx)
	if err != nil {
		t.Fatalf("CountBySeverity: %v", err)
	}
	if counts["Critical"] != 2 || counts["Info"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
