// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/iotpipeline/internal/audit"
	"github.com/tomtom215/iotpipeline/internal/domain"
)

type auditRecord struct {
	Alert         domain.Alert `json:"alert"`
	CommandSent   bool         `json:"commandSent"`
	CommandResult string       `json:"commandResult,omitempty"`
	ProcessedAt   time.Time    `json:"processedAt"`
}

func toAuditRecord(rec audit.Record) auditRecord {
	return auditRecord{
		Alert:         rec.Alert,
		CommandSent:   rec.CommandSent,
		CommandResult: rec.CommandResult,
		ProcessedAt:   rec.ProcessedAt,
	}
}

// ListAuditRecords handles GET /api/v1/alerts/audit.
//
// Query parameters: deviceId, minSeverity, commandSent, since (RFC3339),
// limit (1-1000).
func (h *Handler) ListAuditRecords(w http.ResponseWriter, r *http.Request) {
	filter, msg := parseAuditFilter(r)
	if msg != "" {
		respondError(w, r, http.StatusBadRequest, CodeValidation, msg, nil)
		return
	}

	records, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to query audit records", err)
		return
	}
	out := make([]auditRecord, len(records))
	for i, rec := range records {
		out[i] = toAuditRecord(rec)
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": out, "count": len(out)})
}

func parseAuditFilter(r *http.Request) (audit.QueryFilter, string) {
	q := r.URL.Query()
	var f audit.QueryFilter

	if v := q.Get("deviceId"); v != "" {
		id, err := domain.NewDeviceID(v)
		if err != nil {
			return f, err.Error()
		}
		f.DeviceID = id
	}
	if v := q.Get("minSeverity"); v != "" {
		sev, ok := domain.ParseSeverity(v)
		if !ok {
			return f, "minSeverity must be one of Info, Warning, Error, Critical"
		}
		f.MinSeverity = sev
	}
	if v := q.Get("commandSent"); v != "" {
		sent, err := strconv.ParseBool(v)
		if err != nil {
			return f, "commandSent must be true or false"
		}
		f.CommandSent = &sent
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, "since must be an RFC3339 timestamp"
		}
		f.Since = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return f, "limit must be between 1 and 1000"
		}
		f.Limit = n
	}
	return f, ""
}

// GetAuditRecord handles GET /api/v1/alerts/audit/{alertId}.
func (h *Handler) GetAuditRecord(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "alertId"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "alertId must be a UUID", nil)
		return
	}
	rec, found, err := h.audit.Get(r.Context(), id).Get()
	switch {
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to load audit record", err)
	case !found:
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Audit record not found", nil)
	default:
		respondJSON(w, http.StatusOK, toAuditRecord(rec))
	}
}

// ListDevices handles GET /api/v1/devices.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	list, err := h.devices.List(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to list devices", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"devices": list, "count": len(list)})
}

// GetDevice handles GET /api/v1/devices/{deviceId}.
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := domain.NewDeviceID(chi.URLParam(r, "deviceId"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	d, found, err := h.devices.Get(r.Context(), id).Get()
	switch {
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to load device", err)
	case !found:
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Device not found", nil)
	default:
		respondJSON(w, http.StatusOK, d)
	}
}

// GetTwin handles GET /api/v1/devices/{deviceId}/twin.
func (h *Handler) GetTwin(w http.ResponseWriter, r *http.Request) {
	id, err := domain.NewDeviceID(chi.URLParam(r, "deviceId"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	tw, found, err := h.twins.Get(r.Context(), id).Get()
	switch {
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to load digital twin", err)
	case !found:
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Digital twin not found", nil)
	default:
		respondJSON(w, http.StatusOK, tw)
	}
}
