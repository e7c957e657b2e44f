// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// ObjectStoreManager is the subset of jetstream.JetStream needed to open buckets.
type ObjectStoreManager interface {
	ObjectStore(ctx context.Context, bucket string) (jetstream.ObjectStore, error)
	CreateObjectStore(ctx context.Context, cfg jetstream.ObjectStoreConfig) (jetstream.ObjectStore, error)
}

// ObjectStoreBlobs is a BlobStore backed by a JetStream object store bucket.
// Object metadata carries the headers.
type ObjectStoreBlobs struct {
	bucket string
	store  jetstream.ObjectStore
}

// OpenObjectStore opens bucket, creating it with file storage if missing.
func OpenObjectStore(ctx context.Context, js ObjectStoreManager, bucket, description string) (*ObjectStoreBlobs, error) {
	store, err := js.ObjectStore(ctx, bucket)
	if err == nil {
		return &ObjectStoreBlobs{bucket: bucket, store: store}, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("open object store %s: %w", bucket, err)
	}

	store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: description,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		// Another instance may have created it first.
		if errors.Is(err, jetstream.ErrBucketExists) || errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
			if store, err = js.ObjectStore(ctx, bucket); err == nil {
				return &ObjectStoreBlobs{bucket: bucket, store: store}, nil
			}
		}
		return nil, fmt.Errorf("create object store %s: %w", bucket, err)
	}
	return &ObjectStoreBlobs{bucket: bucket, store: store}, nil
}

func (o *ObjectStoreBlobs) Put(ctx context.Context, key string, data []byte, headers map[string]string) error {
	meta := jetstream.ObjectMeta{
		Name:     key,
		Metadata: headers,
	}
	if _, err := o.store.Put(ctx, meta, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("put %s/%s: %w", o.bucket, key, err)
	}
	return nil
}

func (o *ObjectStoreBlobs) Get(ctx context.Context, key string) domain.Result[Object] {
	info, err := o.store.GetInfo(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return domain.NotFound[Object]()
	}
	if err != nil {
		return domain.Failed[Object](fmt.Errorf("stat %s/%s: %w", o.bucket, key, err))
	}
	data, err := o.store.GetBytes(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return domain.NotFound[Object]()
	}
	if err != nil {
		return domain.Failed[Object](fmt.Errorf("get %s/%s: %w", o.bucket, key, err))
	}
	return domain.Found(Object{Key: key, Data: data, Headers: info.Metadata})
}

func (o *ObjectStoreBlobs) Bucket() string {
	return o.bucket
}
