// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "iotpipeline"

var (
	// Pipeline orchestration

	PipelineCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_commands_total",
			Help:      "Commands dispatched to a stage handler, by command kind and result",
		},
		[]string{"kind", "result"}, // result: ok, error
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Time spent in a single stage handler",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	PipelineChainDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_chain_duration_seconds",
			Help:      "Time to run a full cascade, keyed by the entry command kind",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"entry_kind", "result"},
	)

	PipelineChainLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_chain_length",
			Help:      "Number of stages executed per cascade",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 16, 32},
		},
	)

	DomainEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Domain events raised by stages and entity transitions",
		},
		[]string{"event"},
	)

	DuplicatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_skipped_total",
			Help:      "Commands dropped by the idempotency guard",
		},
		[]string{"flow"}, // alert, device
	)

	// Telemetry flow

	ReadingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_rejected_total",
			Help:      "Telemetry readings rejected by validation, by rule",
		},
		[]string{"rule"}, // bad_quality, too_many_measurements, too_old, future
	)

	ReadingsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_accepted_total",
			Help:      "Telemetry readings that passed validation",
		},
	)

	EnrichmentLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_lookups_total",
			Help:      "Device metadata lookups during enrichment, by result",
		},
		[]string{"result"}, // found, not_found, error
	)

	StorageWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_writes_total",
			Help:      "Tiered storage object writes",
		},
		[]string{"tier", "result"},
	)

	StorageWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_write_duration_seconds",
			Help:      "Tiered storage write latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tier"},
	)

	StorageWriteBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_write_bytes_total",
			Help:      "Bytes written to tiered storage",
		},
		[]string{"tier"},
	)

	GoldBucketsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gold_buckets_pending",
			Help:      "Hourly aggregate buckets with unflushed changes",
		},
	)

	// Alert flow

	DeviceCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_total",
			Help:      "Outbound device commands, by outcome",
		},
		[]string{"outcome"}, // delivered, failed, timed_out, error
	)

	DeviceCommandDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "device_command_duration_seconds",
			Help:      "Latency of outbound device command delivery",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	AlertsAudited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_audited_total",
			Help:      "Alerts written to the audit store",
		},
		[]string{"severity", "command_sent"},
	)

	// Device lifecycle flow

	TwinSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "twin_syncs_total",
			Help:      "Digital twin synchronizations, by operation and result",
		},
		[]string{"operation", "result"}, // result: ok, missing, error
	)

	// Ingestion

	MessagesDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_decoded_total",
			Help:      "Inbound messages by flow and decode result",
		},
		[]string{"flow", "result"}, // result: ok, malformed
	)

	MessagesAcked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_settled_total",
			Help:      "Inbound messages by flow and settlement (ack, nack, dead_letter)",
		},
		[]string{"flow", "settlement"},
	)

	NATSPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nats_published_total",
			Help:      "Messages published to NATS JetStream",
		},
		[]string{"result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state changes",
		},
		[]string{"name", "from", "to"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "In-memory cache lookups, by cache and result",
		},
		[]string{"cache", "result"}, // hit, miss
	)

	// API

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordStage records one handler invocation.
func RecordStage(kind string, duration time.Duration, err error) {
	PipelineCommandsTotal.WithLabelValues(kind, resultLabel(err)).Inc()
	PipelineStageDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordChain records a completed or aborted cascade.
func RecordChain(entryKind string, steps int, duration time.Duration, err error) {
	PipelineChainDuration.WithLabelValues(entryKind, resultLabel(err)).Observe(duration.Seconds())
	PipelineChainLength.Observe(float64(steps))
}

func RecordDomainEvent(name string) {
	DomainEventsTotal.WithLabelValues(name).Inc()
}

func RecordDuplicateSkipped(flow string) {
	DuplicatesSkipped.WithLabelValues(flow).Inc()
}

func RecordReadingRejected(rule string) {
	ReadingsRejected.WithLabelValues(rule).Inc()
}

func RecordReadingAccepted() {
	ReadingsAccepted.Inc()
}

func RecordEnrichmentLookup(result string) {
	EnrichmentLookups.WithLabelValues(result).Inc()
}

// RecordStorageWrite records one object write to tier.
func RecordStorageWrite(tier string, bytes int, duration time.Duration, err error) {
	StorageWrites.WithLabelValues(tier, resultLabel(err)).Inc()
	StorageWriteDuration.WithLabelValues(tier).Observe(duration.Seconds())
	if err == nil {
		StorageWriteBytes.WithLabelValues(tier).Add(float64(bytes))
	}
}

func SetGoldBucketsPending(n int) {
	GoldBucketsPending.Set(float64(n))
}

func RecordDeviceCommand(outcome string, duration time.Duration) {
	DeviceCommands.WithLabelValues(outcome).Inc()
	DeviceCommandDuration.Observe(duration.Seconds())
}

func RecordAlertAudited(severity string, commandSent bool) {
	sent := "false"
	if commandSent {
		sent = "true"
	}
	AlertsAudited.WithLabelValues(severity, sent).Inc()
}

func RecordTwinSync(operation, result string) {
	TwinSyncs.WithLabelValues(operation, result).Inc()
}

func RecordDecode(flow string, ok bool) {
	result := "ok"
	if !ok {
		result = "malformed"
	}
	MessagesDecoded.WithLabelValues(flow, result).Inc()
}

// RecordSettlement counts how an inbound message left the pipeline.
func RecordSettlement(flow, settlement string) {
	MessagesAcked.WithLabelValues(flow, settlement).Inc()
}

func RecordNATSPublish(err error) {
	NATSPublished.WithLabelValues(resultLabel(err)).Inc()
}

// RecordCircuitBreakerTransition updates the state gauge and transition counter.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	var v float64
	switch to {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}

func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
