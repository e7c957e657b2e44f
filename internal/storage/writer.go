// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/metrics"
)

// Stores holds one BlobStore per tier.
type Stores struct {
	Bronze BlobStore
	Silver BlobStore
	Gold   BlobStore
}

// MemoryTiers is an in-memory data lake.
type MemoryTiers struct {
	Bronze *MemoryBlobStore
	Silver *MemoryBlobStore
	Gold   *MemoryBlobStore
}

func NewMemoryTiers() MemoryTiers {
	return MemoryTiers{
		Bronze: NewMemoryBlobStore(),
		Silver: NewMemoryBlobStore(),
		Gold:   NewMemoryBlobStore(),
	}
}

func (m MemoryTiers) Stores() Stores {
	return Stores{Bronze: m.Bronze, Silver: m.Silver, Gold: m.Gold}
}

// Writer serializes readings and aggregates and writes them to their tier.
//
// Each tier has its own BlobStore and its own object layout:
//   - bronze: every decoded reading as received, valid or not
//   - silver: validated readings with the device metadata merged in
//   - gold: one aggregate per UTC hour, replaced on every flush
//
// Reading paths are derived from the device ID and device timestamp (see
// ReadingPath), so writing a redelivered reading replaces the same object
// instead of adding a copy. Documents are JSON encoded with goccy/go-json and
// every Put is recorded in the storage metrics.
//
// Example:
//
//	tiers := storage.NewMemoryTiers()
//	w, err := storage.NewWriter(tiers.Stores())
//	if err != nil {
//	    return err
//	}
//	path, err := w.WriteSilver(ctx, reading, map[string]string{"site": "plant-1"})
type Writer struct {
	stores Stores
}

// NewWriter returns a Writer over stores. Every tier must have a store.
func NewWriter(stores Stores) (*Writer, error) {
	if stores.Bronze == nil || stores.Silver == nil || stores.Gold == nil {
		return nil, fmt.Errorf("a blob store is required for every tier")
	}
	return &Writer{stores: stores}, nil
}

// WriteBronze stores the reading as received and returns its path.
func (w *Writer) WriteBronze(ctx context.Context, r domain.TelemetryReading) (string, error) {
	path := ReadingPath(TierBronze, r.DeviceID, r.Timestamp.Time())
	headers := readingHeaders(r)
	headers["isValid"] = strconv.FormatBool(r.IsValid)
	return path, w.put(ctx, TierBronze, w.stores.Bronze, path, NewReadingRecord(r, nil), headers)
}

// WriteSilver stores a validated reading together with its device metadata.
// A nil metadata map is stored as an empty object.
func (w *Writer) WriteSilver(ctx context.Context, r domain.TelemetryReading, metadata map[string]string) (string, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	path := ReadingPath(TierSilver, r.DeviceID, r.Timestamp.Time())
	headers := readingHeaders(r)
	headers["enriched"] = "true"
	return path, w.put(ctx, TierSilver, w.stores.Silver, path, NewReadingRecord(r, metadata), headers)
}

// WriteGold stores the aggregate for rec.Hour, replacing any earlier version.
func (w *Writer) WriteGold(ctx context.Context, rec GoldRecord, writtenAt time.Time) (string, error) {
	path := GoldPath(rec.Hour)
	headers := map[string]string{"timestamp": writtenAt.UTC().Format(time.RFC3339Nano)}
	return path, w.put(ctx, TierGold, w.stores.Gold, path, rec, headers)
}

// ReadGold loads the stored aggregate for hour. A missing object is NotFound;
// an undecodable one is Failed so the caller does not overwrite it blindly.
func (w *Writer) ReadGold(ctx context.Context, hour time.Time) domain.Result[GoldRecord] {
	path := GoldPath(hour)
	obj, found, err := w.stores.Gold.Get(ctx, path).Get()
	if err != nil {
		return domain.Failed[GoldRecord](fmt.Errorf("read %s: %w", path, err))
	}
	if !found {
		return domain.NotFound[GoldRecord]()
	}
	var rec GoldRecord
	if err := json.Unmarshal(obj.Data, &rec); err != nil {
		return domain.Failed[GoldRecord](fmt.Errorf("decode %s: %w", path, err))
	}
	return domain.Found(rec)
}

func (w *Writer) put(ctx context.Context, tier Tier, store BlobStore, path string, doc any, headers map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s record: %w", tier, err)
	}

	start := time.Now()
	err = store.Put(ctx, path, data, headers)
	metrics.RecordStorageWrite(string(tier), len(data), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readingHeaders(r domain.TelemetryReading) map[string]string {
	return map[string]string{
		"deviceId":  string(r.DeviceID),
		"timestamp": r.Timestamp.Time().UTC().Format(time.RFC3339Nano),
	}
}
