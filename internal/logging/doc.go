// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

/*
Package logging is the process-wide zerolog logger.

Every package logs through the global functions here (Info, Debug, Warn, Error,
Err) or through Ctx(ctx), which adds the correlation, message and device
identifiers carried on the context. Pipeline stages attach those identifiers
once, when a message is decoded, so a cascade can be followed end to end:

	ctx = logging.ContextWithCorrelationID(ctx, msg.UUID)
	ctx = logging.ContextWithDeviceID(ctx, string(reading.DeviceID))
	logging.Ctx(ctx).Info().Str("stage", "bronze").Msg("Reading stored")

Two adapters route third-party loggers into zerolog:

  - SlogHandler, used by the suture supervisor through sutureslog
  - WatermillAdapter, used by the Watermill router, publisher and subscribers

# Configuration

LOG_LEVEL (trace, debug, info, warn, error), LOG_FORMAT (json, console) and
LOG_CALLER are read by internal/config and passed to Init.
*/
package logging
