// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

/*
Package domain holds the value and entity model shared by the telemetry, alert
and device-lifecycle flows.

Everything here is pure: no I/O, no logging, no globals. Constructors validate
their input and return a *Violation when an invariant is broken, so callers can
tell a caller/programming error (never fixed by redelivery) apart from an
infrastructure failure.

# Value Objects

  - DeviceID: alphanumerics plus '-', '.', '_', ':'; at most 128 characters
  - Timestamp: UTC instant, at most 1 hour ahead and 10 years behind the clock
  - Measurement: finite value, non-empty unit, quality Good/Uncertain/Bad

# Entities

  - TelemetryReading: one ingested reading; MarkInvalid is one-way
  - Device: registration plus the status transition table
  - Alert: severity, acknowledgment and audit metadata

State-changing methods on Device return the updated value together with the
events they raised:

	updated, events, err := device.Decommission(now)
	if err != nil {
	    return err // *domain.Violation for illegal transitions
	}

# Repository Results

Repository point reads return a Result[T] rather than (T, error) with a
sentinel for absence:

	res := repo.Get(ctx, id)
	switch {
	case res.Failed():
	    return res.Err()
	case !res.Found():
	    // absence is a normal outcome
	}
*/
package domain
