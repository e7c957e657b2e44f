// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package twin keeps a digital twin document per device in a JetStream
// key-value bucket. The lifecycle flow upserts a twin whenever a device
// changes and deletes it when the device is removed.
package twin
