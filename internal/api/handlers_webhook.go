// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package api

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/iotpipeline/internal/devices"
	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/eventprocessor"
	"github.com/tomtom215/iotpipeline/internal/logging"
)

// EventTypeSubscriptionValidation is the handshake a subscription sends before
// any device events.
const EventTypeSubscriptionValidation = "Microsoft.EventGrid.SubscriptionValidationEvent"

// gridEvent is one element of an Event Grid style delivery.
type gridEvent struct {
	ID          string         `json:"id"`
	EventType   string         `json:"eventType"`
	Subject     string         `json:"subject"`
	EventTime   string         `json:"eventTime"`
	DataVersion string         `json:"dataVersion"`
	Data        map[string]any `json:"data"`
}

type webhookResponse struct {
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
}

// DeviceEvents receives device lifecycle events from the registry and
// republishes the supported ones onto the lifecycle subject. The device id
// is the last segment of the event subject ("devices/{deviceId}").
//
// A publish failure answers 503 so the sender redelivers the batch; events
// already published are caught by stream deduplication on the event id.
func (h *Handler) DeviceEvents(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var events []gridEvent
	if err := json.Unmarshal(body, &events); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, "Body must be a JSON array of events", err)
		return
	}
	log := logging.Ctx(r.Context())

	if len(events) > 0 && events[0].EventType == EventTypeSubscriptionValidation {
		code, _ := events[0].Data["validationCode"].(string)
		if code == "" {
			respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, "Subscription validation event missing validationCode", nil)
			return
		}
		log.Info().Msg("Answering event subscription validation")
		respondJSON(w, http.StatusOK, map[string]string{"validationResponse": code})
		return
	}

	var resp webhookResponse
	for _, ev := range events {
		evLog := log.With().
			Str("event_id", sanitizeLogValue(ev.ID)).
			Str("event_type", sanitizeLogValue(ev.EventType)).
			Str("subject", sanitizeLogValue(ev.Subject)).
			Logger()

		if !devices.Supported(ev.EventType) {
			evLog.Warn().Msg("Unsupported device event type, skipping")
			resp.Skipped++
			continue
		}
		deviceID, err := domain.NewDeviceID(subjectDeviceID(ev.Subject))
		if err != nil {
			evLog.Warn().Err(err).Msg("Device event has no usable device id, skipping")
			resp.Skipped++
			continue
		}

		payload, err := json.Marshal(devices.LifecycleEvent{
			DeviceID:  deviceID.String(),
			EventType: ev.EventType,
			EventTime: ev.EventTime,
			Data:      ev.Data,
		})
		if err != nil {
			respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to encode lifecycle event", err)
			return
		}
		if err := h.publisher.PublishPayload(r.Context(), eventprocessor.SubjectLifecycle, ev.ID, payload, h.metadata(r)); err != nil {
			respondError(w, r, http.StatusServiceUnavailable, CodePublishFailed, "Failed to publish device event", err)
			return
		}
		evLog.Info().Str("device_id", deviceID.String()).Msg("Device event forwarded")
		resp.Accepted++
	}

	respondJSON(w, http.StatusOK, resp)
}

func subjectDeviceID(subject string) string {
	if i := strings.LastIndexByte(subject, '/'); i >= 0 {
		return subject[i+1:]
	}
	return subject
}
