// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package storage

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/metrics"
)

// GoldStore reads and persists hourly aggregates.
type GoldStore interface {
	WriteGold(ctx context.Context, rec GoldRecord, writtenAt time.Time) (string, error)
	ReadGold(ctx context.Context, hour time.Time) domain.Result[GoldRecord]
}

// AggregatorConfig configures the hourly aggregator.
type AggregatorConfig struct {
	// FlushInterval is how often dirty hours are written to gold.
	FlushInterval time.Duration
	// Retention is how long after its end an hour is kept in memory so late
	// readings still count toward it.
	Retention time.Duration
	Clock     func() time.Time
}

func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		FlushInterval: time.Minute,
		Retention:     25 * time.Hour,
		Clock:         time.Now,
	}
}

type measurementAgg struct {
	count    int
	min, max float64
	sum      float64
	unit     string
}

type readingKey struct {
	device domain.DeviceID
	nanos  int64
}

type hourBucket struct {
	hour         time.Time
	total        int
	devices      map[domain.DeviceID]struct{}
	measurements map[string]*measurementAgg
	seen         map[readingKey]struct{}

	// loaded is set once the stored gold record for hour has been merged in.
	// Until then pending keeps the readings to replay on top of it.
	loaded  bool
	pending []domain.TelemetryReading

	dirty bool
}

// Aggregator accumulates silver readings into hourly buckets keyed by the UTC
// hour of the device timestamp and periodically writes them to gold.
//
// Writes are idempotent with respect to redelivery and restarts:
//
//  1. Each bucket remembers the (device, device timestamp) of every reading it
//     counted. Observing the same reading again is a no-op.
//  2. Before the first write of an hour, Flush loads the hour's existing gold
//     object and rebuilds the bucket from it, replaying only the locally
//     observed readings the stored record does not already list.
//  3. Every later write replaces the object with the merged totals.
//
// An hour whose stored object cannot be read stays dirty and is retried on
// the next flush rather than being overwritten with partial totals.
//
// Example:
//
//	agg := storage.NewAggregator(writer, storage.AggregatorConfig{FlushInterval: time.Minute})
//	tree.AddDataService(agg) // flushes on every tick and once more on shutdown
//	agg.Observe(reading)
type Aggregator struct {
	store GoldStore
	cfg   AggregatorConfig

	mu      sync.Mutex
	buckets map[time.Time]*hourBucket
}

func NewAggregator(store GoldStore, cfg AggregatorConfig) *Aggregator {
	def := DefaultAggregatorConfig()
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	return &Aggregator{
		store:   store,
		cfg:     cfg,
		buckets: make(map[time.Time]*hourBucket),
	}
}

// Observe adds a reading to its hour. A reading already counted for the same
// device and timestamp is ignored.
func (a *Aggregator) Observe(r domain.TelemetryReading) {
	hour := r.Timestamp.Time().UTC().Truncate(time.Hour)

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[hour]
	if !ok {
		b = newHourBucket(hour)
		a.buckets[hour] = b
	}
	if !b.apply(r) {
		return
	}
	if !b.loaded {
		b.pending = append(b.pending, r)
	}
	b.dirty = true
	metrics.SetGoldBucketsPending(a.pendingLocked())
}

// Flush writes every hour changed since the last flush and evicts hours past
// retention. A failed hour stays dirty and is retried on the next flush.
func (a *Aggregator) Flush(ctx context.Context) error {
	now := a.cfg.Clock()
	var firstErr error
	fail := func(hour time.Time, err error, msg string) {
		logging.Ctx(ctx).Error().Err(err).Time("hour", hour).Msg(msg)
		a.markDirty(hour)
		if firstErr == nil {
			firstErr = err
		}
	}

	a.mu.Lock()
	var unloaded []time.Time
	for hour, b := range a.buckets {
		if b.dirty && !b.loaded {
			unloaded = append(unloaded, hour)
		}
	}
	a.mu.Unlock()

	stored := make(map[time.Time]domain.Result[GoldRecord], len(unloaded))
	for _, hour := range unloaded {
		stored[hour] = a.store.ReadGold(ctx, hour)
	}

	a.mu.Lock()
	var records []GoldRecord
	var skipped []time.Time
	for hour, b := range a.buckets {
		if res, ok := stored[hour]; ok && !b.loaded {
			rec, found, err := res.Get()
			switch {
			case err != nil:
				skipped = append(skipped, hour)
				b.dirty = false
				continue
			case found:
				b.mergeStored(rec)
			default:
				b.loaded = true
				b.pending = nil
			}
		}
		if b.dirty && b.loaded {
			records = append(records, b.record())
			b.dirty = false
		}
	}
	a.mu.Unlock()

	for _, hour := range skipped {
		fail(hour, stored[hour].Err(), "Failed to load stored hourly aggregate")
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Hour.Before(records[j].Hour) })

	for _, rec := range records {
		if _, err := a.store.WriteGold(ctx, rec, now); err != nil {
			fail(rec.Hour, err, "Failed to write hourly aggregate")
		}
	}

	a.mu.Lock()
	for hour, b := range a.buckets {
		if !b.dirty && now.Sub(hour.Add(time.Hour)) > a.cfg.Retention {
			delete(a.buckets, hour)
		}
	}
	metrics.SetGoldBucketsPending(a.pendingLocked())
	a.mu.Unlock()

	return firstErr
}

// Serve flushes on every interval until ctx ends, then flushes once more.
func (a *Aggregator) Serve(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = a.Flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := a.Flush(flushCtx)
			cancel()
			if err != nil {
				return err
			}
			return ctx.Err()
		}
	}
}

func (a *Aggregator) String() string { return "gold-aggregator" }

// Snapshot returns the current aggregate for hour without writing it. Before
// the hour's first flush it covers only readings observed by this process.
func (a *Aggregator) Snapshot(hour time.Time) (GoldRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buckets[hour.UTC().Truncate(time.Hour)]
	if !ok {
		return GoldRecord{}, false
	}
	return b.record(), true
}

func (a *Aggregator) markDirty(hour time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if b, ok := a.buckets[hour]; ok {
		b.dirty = true
	}
}

func (a *Aggregator) pendingLocked() int {
	n := 0
	for _, b := range a.buckets {
		if b.dirty {
			n++
		}
	}
	return n
}

func newHourBucket(hour time.Time) *hourBucket {
	return &hourBucket{
		hour:         hour,
		devices:      make(map[domain.DeviceID]struct{}),
		measurements: make(map[string]*measurementAgg),
		seen:         make(map[readingKey]struct{}),
	}
}

// apply counts r and reports whether it was new to the bucket.
func (b *hourBucket) apply(r domain.TelemetryReading) bool {
	key := readingKey{device: r.DeviceID, nanos: r.Timestamp.Time().UnixNano()}
	if _, dup := b.seen[key]; dup {
		return false
	}
	b.seen[key] = struct{}{}
	b.total++
	b.devices[r.DeviceID] = struct{}{}
	for name, m := range r.Measurements {
		agg, ok := b.measurements[name]
		if !ok {
			agg = &measurementAgg{min: math.Inf(1), max: math.Inf(-1), unit: m.Unit}
			b.measurements[name] = agg
		}
		agg.count++
		agg.sum += m.Value
		agg.min = math.Min(agg.min, m.Value)
		agg.max = math.Max(agg.max, m.Value)
	}
	return true
}

// mergeStored resets the bucket to rec and replays the pending readings that
// rec does not already count.
func (b *hourBucket) mergeStored(rec GoldRecord) {
	pending := b.pending
	*b = *newHourBucket(b.hour)
	b.total = rec.TotalReadings
	for _, gr := range rec.Readings {
		key := readingKey{device: domain.DeviceID(gr.DeviceID), nanos: gr.Timestamp.UnixNano()}
		b.seen[key] = struct{}{}
		b.devices[key.device] = struct{}{}
	}
	for name, m := range rec.Measurements {
		b.measurements[name] = &measurementAgg{
			count: m.Count,
			min:   m.Min,
			max:   m.Max,
			sum:   m.Avg * float64(m.Count),
			unit:  m.Unit,
		}
	}
	b.loaded = true
	for _, r := range pending {
		if b.apply(r) {
			b.dirty = true
		}
	}
}

func (b *hourBucket) record() GoldRecord {
	rec := GoldRecord{
		Hour:          b.hour,
		TotalReadings: b.total,
		DeviceCount:   len(b.devices),
		Measurements:  make(map[string]MeasurementAggregate, len(b.measurements)),
		Readings:      make([]GoldReading, 0, len(b.seen)),
	}
	for name, m := range b.measurements {
		rec.Measurements[name] = MeasurementAggregate{
			Count: m.count,
			Min:   m.min,
			Max:   m.max,
			Avg:   m.sum / float64(m.count),
			Unit:  m.unit,
		}
	}
	for key := range b.seen {
		rec.Readings = append(rec.Readings, GoldReading{
			DeviceID:  string(key.device),
			Timestamp: time.Unix(0, key.nanos).UTC(),
		})
	}
	slices.SortFunc(rec.Readings, func(x, y GoldReading) int {
		if c := cmp.Compare(x.DeviceID, y.DeviceID); c != 0 {
			return c
		}
		return x.Timestamp.Compare(y.Timestamp)
	})
	return rec
}
