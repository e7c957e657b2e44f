// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/iotpipeline/internal/devicestore"
	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/metrics"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
	"github.com/tomtom215/iotpipeline/internal/storage"
)

// TierWriter writes readings to the bronze and silver tiers.
type TierWriter interface {
	WriteBronze(ctx context.Context, r domain.TelemetryReading) (string, error)
	WriteSilver(ctx context.Context, r domain.TelemetryReading, metadata map[string]string) (string, error)
}

// ReadingObserver is fed every reading stored to silver.
type ReadingObserver interface {
	Observe(r domain.TelemetryReading)
}

// Config wires the stages. Observer and Clock are optional.
type Config struct {
	Writer    TierWriter
	Metadata  devicestore.MetadataLookup
	Validator *Validator
	Observer  ReadingObserver
	Clock     func() time.Time
}

// Stages implements the four telemetry stages.
type Stages struct {
	writer    TierWriter
	metadata  devicestore.MetadataLookup
	validator *Validator
	observer  ReadingObserver
	now       func() time.Time
}

func NewStages(cfg Config) (*Stages, error) {
	if cfg.Writer == nil {
		return nil, errors.New("telemetry: writer is required")
	}
	if cfg.Metadata == nil {
		return nil, errors.New("telemetry: metadata lookup is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Validator == nil {
		cfg.Validator = NewValidator(DefaultValidatorConfig(), cfg.Clock)
	}
	return &Stages{
		writer:    cfg.Writer,
		metadata:  cfg.Metadata,
		validator: cfg.Validator,
		observer:  cfg.Observer,
		now:       cfg.Clock,
	}, nil
}

// Register adds every telemetry stage to reg.
func (s *Stages) Register(reg *pipeline.Registry) error {
	return errors.Join(
		pipeline.Handle(reg, s.Process),
		pipeline.Handle(reg, s.Validate),
		pipeline.Handle(reg, s.Enrich),
		pipeline.Handle(reg, s.Store),
	)
}

// Process writes the raw reading to bronze and cascades to validation.
func (s *Stages) Process(ctx context.Context, cmd ProcessTelemetry) (pipeline.Outcome, error) {
	r := cmd.Reading
	logging.Ctx(ctx).Info().
		Str("device_id", r.DeviceID.String()).
		Str("partition", cmd.PartitionID).
		Uint64("sequence", cmd.SequenceNumber).
		Msg("Processing telemetry")

	path, err := s.writer.WriteBronze(ctx, r)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	now := s.now()
	return pipeline.Then(ValidateTelemetry{Reading: r},
		domain.TelemetryReceived{ReadingID: r.ID, DeviceID: r.DeviceID, MeasurementCount: len(r.Measurements), At: now},
		domain.TelemetryStored{ReadingID: r.ID, DeviceID: r.DeviceID, Tier: string(storage.TierBronze), Path: path, At: now},
	), nil
}

// Validate applies the acceptance rules. A rejected reading is marked invalid
// and ends the chain.
func (s *Stages) Validate(ctx context.Context, cmd ValidateTelemetry) (pipeline.Outcome, error) {
	r := cmd.Reading
	now := s.now()

	rej := s.validator.Validate(r)
	if rej == nil {
		metrics.RecordReadingAccepted()
		return pipeline.Then(EnrichTelemetry{Reading: r},
			domain.TelemetryValidated{ReadingID: r.ID, DeviceID: r.DeviceID, IsValid: true, At: now},
		), nil
	}

	invalid, err := r.MarkInvalid(rej.Reason)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	metrics.RecordReadingRejected(rej.Rule)
	logging.Ctx(ctx).Warn().
		Str("reading_id", r.ID.String()).
		Str("device_id", r.DeviceID.String()).
		Str("rule", rej.Rule).
		Str("reason", rej.Reason).
		Msg("Telemetry rejected")

	return pipeline.Done(
		domain.TelemetryValidated{ReadingID: invalid.ID, DeviceID: invalid.DeviceID, IsValid: false, Reason: rej.Reason, At: now},
	), nil
}

// Enrich attaches device metadata. An unknown device gets empty metadata; a
// failed lookup aborts the chain.
func (s *Stages) Enrich(ctx context.Context, cmd EnrichTelemetry) (pipeline.Outcome, error) {
	r := cmd.Reading

	md, found, err := s.metadata.Metadata(ctx, r.DeviceID).Get()
	switch {
	case err != nil:
		metrics.RecordEnrichmentLookup("error")
		return pipeline.Outcome{}, err
	case !found:
		metrics.RecordEnrichmentLookup("miss")
		logging.Ctx(ctx).Warn().Str("device_id", r.DeviceID.String()).Msg("No metadata found for device, using empty metadata")
		md = map[string]string{}
	default:
		metrics.RecordEnrichmentLookup("hit")
	}

	return pipeline.Then(StoreTelemetry{Reading: r, Metadata: md},
		domain.TelemetryEnriched{ReadingID: r.ID, DeviceID: r.DeviceID, MetadataCount: len(md), At: s.now()},
	), nil
}

// Store writes the enriched reading to silver. This is the last stage.
func (s *Stages) Store(ctx context.Context, cmd StoreTelemetry) (pipeline.Outcome, error) {
	r := cmd.Reading
	path, err := s.writer.WriteSilver(ctx, r, cmd.Metadata)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if s.observer != nil {
		s.observer.Observe(r)
	}

	logging.Ctx(ctx).Info().
		Str("reading_id", r.ID.String()).
		Str("device_id", r.DeviceID.String()).
		Str("path", path).
		Msg("Telemetry stored")

	return pipeline.Done(
		domain.TelemetryStored{ReadingID: r.ID, DeviceID: r.DeviceID, Tier: string(storage.TierSilver), Path: path, At: s.now()},
	), nil
}
