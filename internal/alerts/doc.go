// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package alerts is the alert flow: deduplicate by alert id, decide whether
// the alert needs a device command, send it, and audit the result.
//
//	alert.process -> [alert.send_command] -> alert.audit
//
// Every alert that is not a duplicate is audited, whether or not a command
// was sent and whatever its outcome.
package alerts
