// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package storage

import (
	"context"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// Object is a stored blob with its metadata headers.
type Object struct {
	Key     string
	Data    []byte
	Headers map[string]string
}

// BlobStore is one bucket of the data lake. Put replaces any existing object
// at key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, headers map[string]string) error
	Get(ctx context.Context, key string) domain.Result[Object]
}
