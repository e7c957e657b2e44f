// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package devicestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/logging"
)

const keyPrefix = "device:"

// BadgerConfig configures the BadgerDB device store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// GCInterval is how often Serve runs value log GC.
	GCInterval   time.Duration
	GCRatio      float64
	CloseTimeout time.Duration
}

func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		Path:         "/data/devices",
		SyncWrites:   true,
		GCInterval:   10 * time.Minute,
		GCRatio:      0.5,
		CloseTimeout: 30 * time.Second,
	}
}

// BadgerStore is a Repository on an embedded BadgerDB. Devices are stored as
// JSON under "device:<id>".
type BadgerStore struct {
	db     *badger.DB
	config BadgerConfig

	mu     sync.RWMutex
	closed bool
}

// OpenBadger opens or creates the store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("device store path is required")
	}
	if cfg.GCRatio <= 0 || cfg.GCRatio >= 1 {
		cfg.GCRatio = 0.5
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Device store opened")

	return &BadgerStore{db: db, config: cfg}, nil
}

func (s *BadgerStore) Get(ctx context.Context, id domain.DeviceID) domain.Result[domain.Device] {
	if err := s.check(ctx); err != nil {
		return domain.Failed[domain.Device](err)
	}

	var d domain.Device
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deviceKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &d)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.NotFound[domain.Device]()
	}
	if err != nil {
		return domain.Failed[domain.Device](fmt.Errorf("get device %s: %w", id, err))
	}
	return domain.Found(d)
}

func (s *BadgerStore) Save(ctx context.Context, d domain.Device) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode device %s: %w", d.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(deviceKey(d.ID), data))
	})
	if err != nil {
		return fmt.Errorf("save device %s: %w", d.ID, err)
	}
	return nil
}

// List returns every device in key order.
func (s *BadgerStore) List(ctx context.Context) ([]domain.Device, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var devices []domain.Device
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var d domain.Device
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping undecodable device")
				continue
			}
			devices = append(devices, d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// RunGC reclaims value log space until nothing is left to rewrite.
func (s *BadgerStore) RunGC() error {
	if err := s.check(context.Background()); err != nil {
		return err
	}
	if s.config.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(s.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Serve runs value log GC every GCInterval until ctx ends.
func (s *BadgerStore) Serve(ctx context.Context) error {
	interval := s.config.GCInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Device store GC failed")
			}
		}
	}
}

func (s *BadgerStore) String() string { return "device-store-gc" }

// Close closes the database, giving up after CloseTimeout.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.db.Close() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		return nil
	case <-time.After(s.config.CloseTimeout):
		return fmt.Errorf("badgerdb close timeout after %v", s.config.CloseTimeout)
	}
}

func (s *BadgerStore) check(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return ctx.Err()
}

func deviceKey(id domain.DeviceID) []byte {
	return []byte(keyPrefix + string(id))
}
