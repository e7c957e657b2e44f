// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package telemetry

import (
	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
)

const (
	KindProcess  pipeline.Kind = "telemetry.process"
	KindValidate pipeline.Kind = "telemetry.validate"
	KindEnrich   pipeline.Kind = "telemetry.enrich"
	KindStore    pipeline.Kind = "telemetry.store"
)

// ProcessTelemetry is the entry command, one per inbound message.
type ProcessTelemetry struct {
	Reading        domain.TelemetryReading
	PartitionID    string
	SequenceNumber uint64
}

func (ProcessTelemetry) Kind() pipeline.Kind { return KindProcess }

type ValidateTelemetry struct {
	Reading domain.TelemetryReading
}

func (ValidateTelemetry) Kind() pipeline.Kind { return KindValidate }

type EnrichTelemetry struct {
	Reading domain.TelemetryReading
}

func (EnrichTelemetry) Kind() pipeline.Kind { return KindEnrich }

type StoreTelemetry struct {
	Reading  domain.TelemetryReading
	Metadata map[string]string
}

func (StoreTelemetry) Kind() pipeline.Kind { return KindStore }
