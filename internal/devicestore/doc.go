// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package devicestore is the device registry.
//
// Repository implementations persist domain.Device values by ID. BadgerStore
// keeps them in an embedded BadgerDB; MemoryStore is for tests. Cached fronts
// a Repository with a TTL LRU for the metadata lookups made while enriching
// telemetry.
package devicestore
