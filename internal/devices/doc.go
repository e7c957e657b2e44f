// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package devices is the device lifecycle flow. Registry events update the
// local device store and every change cascades to a digital twin sync.
//
//	device.created        -> device.sync_twin (CreateOrUpdate)
//	device.deleted        -> device.sync_twin (Delete)
//	device.status_changed -> device.sync_twin (CreateOrUpdate)
//
// A created event for a known device is a duplicate and is dropped. A
// deleted event for an unknown device still deletes the twin.
package devices
