// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package audit persists the outcome of every processed alert.
//
// An audit record is keyed by alert ID and doubles as the idempotency marker
// for the alert flow: an alert whose record exists has been fully processed
// and is dropped on redelivery. DuckDBStore is the durable implementation;
// MemoryStore serves tests and single-process development runs.
package audit
