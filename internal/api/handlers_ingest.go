// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/iotpipeline/internal/alerts"
	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/eventprocessor"
	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/validation"
)

type acceptedResponse struct {
	MessageID string `json:"messageId"`
}

// IngestTelemetry publishes one telemetry message. Only the device id is
// checked here; the rest is decoded and validated by the telemetry consumer.
func (h *Handler) IngestTelemetry(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var head struct {
		DeviceID string `json:"deviceId"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, "Body must be a JSON object", err)
		return
	}
	if _, err := domain.NewDeviceID(head.DeviceID); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}

	h.publish(w, r, eventprocessor.SubjectTelemetry, body)
}

// IngestAlert publishes one alert message after validating its shape.
func (h *Handler) IngestAlert(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var msg alerts.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, "Body must be a JSON object", err)
		return
	}
	if verr := validation.ValidateStruct(&msg); verr != nil {
		respondValidationError(w, verr)
		return
	}

	h.publish(w, r, eventprocessor.SubjectAlerts, body)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request, subject string, body []byte) {
	id := r.Header.Get(HeaderIdempotencyKey)
	if id == "" {
		id = uuid.NewString()
	}

	if err := h.publisher.PublishPayload(r.Context(), subject, id, body, h.metadata(r)); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, CodePublishFailed, "Failed to publish message", err)
		return
	}
	logging.Ctx(r.Context()).Debug().
		Str("subject", subject).
		Str("message_id", sanitizeLogValue(id)).
		Msg("Message published")
	respondJSON(w, http.StatusAccepted, acceptedResponse{MessageID: id})
}

func (h *Handler) metadata(r *http.Request) map[string]string {
	return map[string]string{
		eventprocessor.MetadataEnqueuedTime:  h.now().UTC().Format(time.RFC3339Nano),
		eventprocessor.MetadataCorrelationID: logging.CorrelationIDFromContext(r.Context()),
		eventprocessor.MetadataSource:        "http",
	}
}

// readBody reads at most maxBodyBytes and writes the error response itself
// when it returns false.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request body too large", nil)
			return nil, false
		}
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, "Failed to read request body", err)
		return nil, false
	}
	if len(body) == 0 {
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, "Request body is empty", nil)
		return nil, false
	}
	return body, true
}
