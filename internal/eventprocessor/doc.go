// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

/*
Package eventprocessor is the ingestion adapter between NATS JetStream and the
command pipeline.

It owns the messaging plumbing: an optional embedded NATS server, stream
provisioning, Watermill publishers and durable subscribers, and a Watermill
router whose middleware decides what happens to a message whose cascade failed.

# Settlement

Every inbound message is decoded into an entry command and handed to a
pipeline.Dispatcher. The handler's returned error selects the settlement:

  - nil: the message is acked
  - PermanentError (malformed payload, domain rule violation): routed to the
    poison subject and acked
  - RetryableError: retried in-process with backoff, then nacked so JetStream
    redelivers it until MaxDeliver is reached

Use Classify to turn an arbitrary stage error into one of the two kinds.

# Middleware order

Recoverer, Retry, Throttle, Deduplicator and PoisonQueue, outermost first.
*/
package eventprocessor
