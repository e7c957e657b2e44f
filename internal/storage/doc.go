// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package storage writes telemetry to the bronze, silver and gold tiers of
// the data lake.
//
// Bronze holds every reading as received, silver holds validated readings
// with device metadata, and gold holds hourly aggregates. Each tier is a
// BlobStore; production uses one JetStream object store bucket per tier.
// Writes overwrite whole objects, so replaying a reading rewrites the same
// path with the same content.
package storage
