// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/iotpipeline/internal/audit"
	"github.com/tomtom215/iotpipeline/internal/devicecmd"
	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/metrics"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
)

// Metadata keys attached to an alert when it is audited.
const (
	MetadataCommandSent   = "commandSent"
	MetadataCommandResult = "commandResult"
	MetadataProcessedAt   = "processedAt"
)

// Stages implements the alert stages.
type Stages struct {
	audit  audit.Store
	sender devicecmd.Sender
	now    func() time.Time
}

// NewStages wires the stages. A nil clock uses time.Now.
func NewStages(store audit.Store, sender devicecmd.Sender, now func() time.Time) (*Stages, error) {
	if store == nil {
		return nil, errors.New("alerts: audit store is required")
	}
	if sender == nil {
		return nil, errors.New("alerts: command sender is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Stages{audit: store, sender: sender, now: now}, nil
}

func (s *Stages) Register(reg *pipeline.Registry) error {
	return errors.Join(
		pipeline.Handle(reg, s.Process),
		pipeline.Handle(reg, s.SendCommand),
		pipeline.Handle(reg, s.Audit),
	)
}

// Process drops alerts that were already audited and routes the rest either
// to a device command or straight to audit.
func (s *Stages) Process(ctx context.Context, cmd ProcessAlert) (pipeline.Outcome, error) {
	a := cmd.Alert
	log := logging.Ctx(ctx).With().
		Str("alert_id", a.ID.String()).
		Str("device_id", a.DeviceID.String()).
		Str("severity", a.Severity.String()).
		Logger()

	log.Info().Str("message_id", cmd.MessageID).Msg("Processing alert")

	processed, err := audit.HasBeenProcessed(ctx, s.audit, a.ID)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if processed {
		metrics.RecordDuplicateSkipped("alerts")
		log.Warn().Msg("Alert has already been processed, skipping duplicate")
		return pipeline.Done(), nil
	}

	triggered := domain.AlertTriggered{
		AlertID:  a.ID,
		DeviceID: a.DeviceID,
		Severity: a.Severity,
		Message:  a.Message,
		At:       s.now(),
	}

	if next := Evaluate(a); next != nil {
		return pipeline.Then(*next, triggered), nil
	}
	log.Info().Msg("Alert does not require immediate action")
	return pipeline.Then(AuditAlert{Alert: a}, triggered), nil
}

// SendCommand delivers the device command. Every delivery outcome, and any
// sender error other than cancellation, cascades to audit.
func (s *Stages) SendCommand(ctx context.Context, cmd SendDeviceCommand) (pipeline.Outcome, error) {
	outcome, err := s.sender.Send(ctx, devicecmd.Command{
		DeviceID: cmd.DeviceID,
		Name:     cmd.CommandName,
		Payload:  cmd.Payload,
	})

	var result string
	switch {
	case err != nil && ctx.Err() != nil:
		return pipeline.Outcome{}, err
	case err != nil:
		result = "Exception: " + err.Error()
		logging.Ctx(ctx).Error().Err(err).Str("alert_id", cmd.AlertID.String()).Msg("Failed to send device command")
	case outcome == devicecmd.Delivered:
		result = ResultDelivered
	case outcome == devicecmd.TimedOut:
		result = ResultTimedOut
	default:
		result = ResultFailed
	}
	sent := err == nil && outcome == devicecmd.Delivered

	logging.Ctx(ctx).Info().
		Str("alert_id", cmd.AlertID.String()).
		Str("result", result).
		Msg("Device command result")

	return pipeline.Then(AuditAlert{Alert: cmd.Alert, CommandSent: sent, CommandResult: result}), nil
}

// Audit records the alert with its command outcome. This is the last stage.
func (s *Stages) Audit(ctx context.Context, cmd AuditAlert) (pipeline.Outcome, error) {
	now := s.now().UTC()

	a, err := cmd.Alert.WithMetadata(MetadataCommandSent, cmd.CommandSent)
	if err == nil && cmd.CommandResult != "" {
		a, err = a.WithMetadata(MetadataCommandResult, cmd.CommandResult)
	}
	if err == nil {
		a, err = a.WithMetadata(MetadataProcessedAt, now.Format(time.RFC3339Nano))
	}
	if err != nil {
		return pipeline.Outcome{}, err
	}

	rec := audit.Record{
		Alert:         a,
		CommandSent:   cmd.CommandSent,
		CommandResult: cmd.CommandResult,
		ProcessedAt:   now,
	}
	if err := s.audit.Save(ctx, rec); err != nil {
		return pipeline.Outcome{}, err
	}
	metrics.RecordAlertAudited(a.Severity.String(), cmd.CommandSent)

	logging.Ctx(ctx).Info().
		Str("alert_id", a.ID.String()).
		Str("device_id", a.DeviceID.String()).
		Bool("command_sent", cmd.CommandSent).
		Msg("Alert audited")

	return pipeline.Done(domain.AlertAudited{
		AlertID:     a.ID,
		DeviceID:    a.DeviceID,
		CommandSent: cmd.CommandSent,
		At:          now,
	}), nil
}
