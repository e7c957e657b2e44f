// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package devicecmd delivers cloud-to-device commands over JetStream.
//
// A command for device D is published to "<prefix>.D" as
//
//	{"command": "...", "payload": {...}, "timestamp": "..."}
//
// with command, timestamp and expires headers. Devices (or their gateway)
// consume their own subject and drop messages past expires. Every send is
// bounded by a timeout, guarded by a circuit breaker and limited per device.
package devicecmd
