// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package telemetry is the telemetry flow: each reading is written raw to the
// bronze tier, validated, enriched with device metadata and written to the
// silver tier, where it also feeds the hourly gold aggregates.
//
//	telemetry.process -> telemetry.validate -> telemetry.enrich -> telemetry.store
//
// A reading that fails validation is marked invalid and the chain ends
// there; it is not an error.
package telemetry
