// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package api

import (
	"net/http"
)

// Health reports every registered component. It always answers 200; the
// body carries the overall status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.health.CheckAll(r.Context()))
}

// HealthLive answers 200 while the process is up, regardless of
// dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"alive":  true,
		"uptime": h.now().Sub(h.startTime).Seconds(),
	})
}

// HealthReady answers 503 unless every component is healthy. Degraded
// components still count as ready.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overall := h.health.CheckAll(r.Context())
	status := http.StatusOK
	if !overall.Healthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, overall)
}
