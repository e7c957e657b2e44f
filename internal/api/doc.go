// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package api serves the pipeline's HTTP surface using the chi router.
//
// The API is an edge onto the message stream, not a second processing path:
// ingest endpoints and the device event webhook only validate and publish
// onto the pipeline subjects, and the stages run in the consumers.
//
// Routes:
//
//	GET  /health, /health/live, /health/ready
//	GET  /metrics
//	POST /api/events/devices          Event Grid style lifecycle webhook
//	POST /api/v1/telemetry            publish one telemetry message
//	POST /api/v1/alerts               publish one alert message
//	GET  /api/v1/alerts/audit         query audit records
//	GET  /api/v1/alerts/audit/{id}
//	GET  /api/v1/devices
//	GET  /api/v1/devices/{deviceId}
//	GET  /api/v1/devices/{deviceId}/twin
package api
