// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

/*
Package main is the entry point for the IoT pipeline server.

The server consumes telemetry, alerts and device lifecycle events from a
JetStream stream and runs each message through a cascade of typed stages.
An HTTP edge publishes onto the same stream and serves read-only queries.

# Supervisor Tree

	RootSupervisor ("iotpipeline")
	├── DataSupervisor ("data-layer")
	│   ├── Gold aggregator (hourly rollups)
	│   ├── Device store value log GC (badger backend)
	│   ├── Device metadata cache cleanup
	│   └── Command rate limiter pruning
	├── MessagingSupervisor ("messaging-layer")
	│   └── Pipeline (Watermill router, one consumer per flow)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Initialization order:

 1. Configuration: koanf with defaults, YAML file and environment
 2. Logging: zerolog
 3. NATS: embedded server or external URL, stream, publisher, router
 4. Stores: object store tiers, DuckDB audit, Badger devices, KV twins
 5. Pipeline: stage registry and orchestrator, one flow per subject
 6. HTTP: chi router with rate limiting, CORS and metrics
 7. Supervisor tree, then signal handling

On SIGINT or SIGTERM the tree stops every service, then the stores close
and finally the NATS connection and embedded server.
*/
package main
