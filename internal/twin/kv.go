// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package twin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/metrics"
)

// KeyValueManager is the subset of jetstream.JetStream needed to open a bucket.
type KeyValueManager interface {
	KeyValue(ctx context.Context, bucket string) (jetstream.KeyValue, error)
	CreateKeyValue(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error)
}

// KVService stores twins in a JetStream KV bucket.
type KVService struct {
	kv      jetstream.KeyValue
	timeout time.Duration
}

// OpenKV opens bucket, creating it if missing. Each call is bounded by timeout.
func OpenKV(ctx context.Context, js KeyValueManager, bucket string, timeout time.Duration) (*KVService, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return &KVService{kv: kv, timeout: timeout}, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("open twin bucket %s: %w", bucket, err)
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Device digital twins",
		History:     5,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketExists) {
			if kv, err = js.KeyValue(ctx, bucket); err == nil {
				return &KVService{kv: kv, timeout: timeout}, nil
			}
		}
		return nil, fmt.Errorf("create twin bucket %s: %w", bucket, err)
	}
	return &KVService{kv: kv, timeout: timeout}, nil
}

// NewKVService wraps an already opened bucket.
func NewKVService(kv jetstream.KeyValue, timeout time.Duration) *KVService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KVService{kv: kv, timeout: timeout}
}

// Upsert replaces the twin for d. The bucket keeps a short history per key.
func (s *KVService) Upsert(ctx context.Context, d domain.Device) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := json.Marshal(FromDevice(d))
	if err != nil {
		return fmt.Errorf("encode twin %s: %w", d.ID, err)
	}
	if _, err := s.kv.Put(ctx, key(d.ID), data); err != nil {
		metrics.RecordTwinSync("upsert", "error")
		return fmt.Errorf("put twin %s: %w", d.ID, err)
	}
	metrics.RecordTwinSync("upsert", "ok")
	logging.Ctx(ctx).Info().Str("device_id", d.ID.String()).Msg("Digital twin upserted")
	return nil
}

// Delete removes the twin for id. Deleting a twin that does not exist is
// logged and reported as success, so a redelivered delete does not fail.
func (s *KVService) Delete(ctx context.Context, id domain.DeviceID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.kv.Get(ctx, key(id)); errors.Is(err, jetstream.ErrKeyNotFound) {
		metrics.RecordTwinSync("delete", "absent")
		logging.Ctx(ctx).Warn().Str("device_id", id.String()).Msg("Digital twin not found, may have already been deleted")
		return nil
	}
	err := s.kv.Delete(ctx, key(id))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		metrics.RecordTwinSync("delete", "error")
		return fmt.Errorf("delete twin %s: %w", id, err)
	}
	metrics.RecordTwinSync("delete", "ok")
	logging.Ctx(ctx).Info().Str("device_id", id.String()).Msg("Digital twin deleted")
	return nil
}

func (s *KVService) Get(ctx context.Context, id domain.DeviceID) domain.Result[Twin] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entry, err := s.kv.Get(ctx, key(id))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return domain.NotFound[Twin]()
	}
	if err != nil {
		return domain.Failed[Twin](fmt.Errorf("get twin %s: %w", id, err))
	}
	var t Twin
	if err := json.Unmarshal(entry.Value(), &t); err != nil {
		return domain.Failed[Twin](fmt.Errorf("decode twin %s: %w", id, err))
	}
	return domain.Found(t)
}

// HealthCheck reports whether the bucket answers a status request.
func (s *KVService) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.kv.Status(ctx); err != nil {
		return fmt.Errorf("twin bucket status: %w", err)
	}
	return nil
}
