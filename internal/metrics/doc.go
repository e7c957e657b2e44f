// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

/*
Package metrics exposes Prometheus instrumentation for the pipeline.

Collectors are registered on the default registry through promauto and
updated through the Record* helpers, so call sites never touch label
cardinality directly. The HTTP server serves them at /metrics.

# Available Metrics

Pipeline:
  - iotpipeline_pipeline_commands_total{kind,result}
  - iotpipeline_pipeline_stage_duration_seconds{kind}
  - iotpipeline_pipeline_chain_duration_seconds{entry_kind,result}
  - iotpipeline_pipeline_chain_length
  - iotpipeline_domain_events_total{event}
  - iotpipeline_duplicates_skipped_total{flow}

Telemetry:
  - iotpipeline_readings_rejected_total{rule}
  - iotpipeline_readings_accepted_total
  - iotpipeline_enrichment_lookups_total{result}
  - iotpipeline_storage_writes_total{tier,result}
  - iotpipeline_storage_write_duration_seconds{tier}
  - iotpipeline_storage_write_bytes_total{tier}
  - iotpipeline_gold_buckets_pending

Alerts and devices:
  - iotpipeline_device_commands_total{outcome}
  - iotpipeline_device_command_duration_seconds
  - iotpipeline_alerts_audited_total{severity,command_sent}
  - iotpipeline_twin_syncs_total{operation,result}

Transport:
  - iotpipeline_messages_decoded_total{flow,result}
  - iotpipeline_messages_settled_total{flow,settlement}
  - iotpipeline_nats_published_total{result}
  - iotpipeline_circuit_breaker_state{name}
  - iotpipeline_circuit_breaker_transitions_total{name,from,to}
  - iotpipeline_cache_lookups_total{cache,result}
  - iotpipeline_api_requests_total{method,route,status}
  - iotpipeline_api_request_duration_seconds{method,route}
*/
package metrics
