// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package devices

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/tomtom215/iotpipeline/internal/devicestore"
	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/eventprocessor"
	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/metrics"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
	"github.com/tomtom215/iotpipeline/internal/twin"
)

// Stages implements the lifecycle stages.
type Stages struct {
	repo  devicestore.Repository
	twins twin.Service
	now   func() time.Time
}

func NewStages(repo devicestore.Repository, twins twin.Service, now func() time.Time) (*Stages, error) {
	if repo == nil {
		return nil, errors.New("devices: repository is required")
	}
	if twins == nil {
		return nil, errors.New("devices: twin service is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Stages{repo: repo, twins: twins, now: now}, nil
}

func (s *Stages) Register(reg *pipeline.Registry) error {
	return errors.Join(
		pipeline.Handle(reg, s.Created),
		pipeline.Handle(reg, s.Deleted),
		pipeline.Handle(reg, s.StatusChanged),
		pipeline.Handle(reg, s.SyncTwin),
	)
}

// Created registers and activates a new device.
func (s *Stages) Created(ctx context.Context, cmd DeviceCreated) (pipeline.Outcome, error) {
	log := logging.Ctx(ctx).With().Str("device_id", cmd.DeviceID.String()).Logger()
	log.Info().Str("event_type", cmd.EventType).Msg("Processing device created event")

	exists, err := devicestore.HasBeenProcessed(ctx, s.repo, cmd.DeviceID)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if exists {
		metrics.RecordDuplicateSkipped("devices")
		log.Warn().Msg("Device already exists, skipping duplicate creation")
		return pipeline.Done(), nil
	}

	name := stringField(cmd.Data, "deviceName", string(cmd.DeviceID))
	deviceType := stringField(cmd.Data, "deviceType", domain.DefaultDeviceType)
	now := s.now()

	d, events, err := domain.RegisterDevice(cmd.DeviceID, name, deviceType, now)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if loc := stringField(cmd.Data, "location", ""); loc != "" {
		d = d.UpdateLocation(loc, now)
	}
	if props, ok := cmd.Data["properties"].(map[string]any); ok {
		for _, k := range slices.Sorted(maps.Keys(props)) {
			if d, err = d.SetProperty(k, fmt.Sprint(props[k]), now); err != nil {
				return pipeline.Outcome{}, err
			}
		}
	}
	d, activated, err := d.Activate(now)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	events = append(events, activated...)

	if err := s.repo.Save(ctx, d); err != nil {
		return pipeline.Outcome{}, err
	}
	log.Info().Str("status", d.Status.String()).Msg("Device created")

	return pipeline.Then(SyncDigitalTwin{
		DeviceID:  d.ID,
		Operation: SyncCreateOrUpdate,
		Metadata: map[string]any{
			"name":      d.Name,
			"type":      d.Type,
			"status":    d.Status.String(),
			"createdAt": d.CreatedAt,
		},
	}, events...), nil
}

// Deleted decommissions the device if it is known. The twin is deleted
// either way.
func (s *Stages) Deleted(ctx context.Context, cmd DeviceDeleted) (pipeline.Outcome, error) {
	log := logging.Ctx(ctx).With().Str("device_id", cmd.DeviceID.String()).Logger()
	next := SyncDigitalTwin{DeviceID: cmd.DeviceID, Operation: SyncDelete}

	d, found, err := s.repo.Get(ctx, cmd.DeviceID).Get()
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if !found {
		log.Warn().Msg("Device not found, may have already been deleted")
		return pipeline.Then(next), nil
	}

	d, events, err := d.Decommission(s.now())
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if len(events) > 0 {
		if err := s.repo.Save(ctx, d); err != nil {
			return pipeline.Outcome{}, err
		}
	}
	log.Info().Msg("Device marked as decommissioned")
	return pipeline.Then(next, events...), nil
}

// StatusChanged applies a lifecycle action. Unknown devices are skipped; a
// same-state action still refreshes the twin.
func (s *Stages) StatusChanged(ctx context.Context, cmd ChangeStatus) (pipeline.Outcome, error) {
	log := logging.Ctx(ctx).With().
		Str("device_id", cmd.DeviceID.String()).
		Str("action", string(cmd.Action)).
		Logger()

	d, found, err := s.repo.Get(ctx, cmd.DeviceID).Get()
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if !found {
		log.Warn().Msg("Status change for unknown device, skipping")
		return pipeline.Done(), nil
	}

	d, events, err := d.Apply(cmd.Action, s.now())
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if len(events) > 0 {
		if err := s.repo.Save(ctx, d); err != nil {
			return pipeline.Outcome{}, err
		}
	}
	log.Info().Str("status", d.Status.String()).Msg("Device status updated")

	return pipeline.Then(SyncDigitalTwin{DeviceID: d.ID, Operation: SyncCreateOrUpdate}, events...), nil
}

// SyncTwin pushes the device to its twin or deletes the twin. This is the
// last stage.
func (s *Stages) SyncTwin(ctx context.Context, cmd SyncDigitalTwin) (pipeline.Outcome, error) {
	log := logging.Ctx(ctx).With().
		Str("device_id", cmd.DeviceID.String()).
		Str("operation", string(cmd.Operation)).
		Logger()

	switch cmd.Operation {
	case SyncDelete:
		if err := s.twins.Delete(ctx, cmd.DeviceID); err != nil {
			return pipeline.Outcome{}, err
		}
		log.Info().Msg("Digital twin deleted")
		return pipeline.Done(), nil

	case SyncCreateOrUpdate:
		d, found, err := s.repo.Get(ctx, cmd.DeviceID).Get()
		if err != nil {
			return pipeline.Outcome{}, err
		}
		if !found {
			log.Warn().Msg("Cannot sync digital twin, device not found")
			return pipeline.Done(), nil
		}
		if err := s.twins.Upsert(ctx, d); err != nil {
			return pipeline.Outcome{}, fmt.Errorf("sync digital twin for %s: %w", cmd.DeviceID, err)
		}
		log.Info().Msg("Digital twin created or updated")
		return pipeline.Done(), nil
	}
	return pipeline.Outcome{}, eventprocessor.NewPermanentError(
		fmt.Sprintf("unknown twin sync operation %q", cmd.Operation), nil)
}

func stringField(data map[string]any, key, fallback string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return fallback
	}
	s := fmt.Sprint(v)
	if s == "" {
		return fallback
	}
	return s
}
