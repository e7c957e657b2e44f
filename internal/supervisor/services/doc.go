// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package services adapts pipeline components to suture.Service.
//
// Each wrapper translates a component's own lifecycle (blocking
// ListenAndServe, Start/Shutdown pairs, periodic maintenance callbacks)
// into a context-aware Serve method that returns when the context is
// canceled, so the supervisor tree can restart it on failure.
package services
