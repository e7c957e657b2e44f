// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package supervisor runs the process's long-lived services under a suture
// tree, restarting any that fail.
//
// The tree has three layers under one root:
//
//	iotpipeline
//	├── data-layer       device store GC, metadata cache cleanup, gold aggregator
//	├── messaging-layer  pipeline consumers (Watermill router)
//	└── api-layer        HTTP server
//
// A service that keeps failing backs off on its own supervisor; the other
// layers keep running. Supervisor events are logged through sutureslog.
package supervisor
