// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

/*
Package pipeline runs cascading command chains.

A Command names its Kind. A Registry maps each Kind to exactly one Handler.
The Orchestrator dispatches an entry command, and while the handler's Outcome
carries a Next command it dispatches that too, in the same goroutine and under
the same context:

	ProcessTelemetry -> ValidateTelemetry -> EnrichTelemetry -> StoreTelemetry

The chain stops when a handler returns no Next command, or fails with the
first handler error. Side effects of stages that already ran are kept; the
caller decides from the error whether the inbound message is redelivered or
dead-lettered. The orchestrator never retries a stage.

Stages that need to start a new chain (the ingestion adapter, the gold
aggregator) receive a Dispatcher in their constructor instead of reaching for
a global.
*/
package pipeline
