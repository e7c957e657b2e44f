// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the HTTP handler for h.
func NewRouter(h *Handler, mw *Middleware) http.Handler {
	if mw == nil {
		mw = NewMiddleware(DefaultMiddlewareConfig())
	}
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(RequestLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS()) // global so OPTIONS preflight is answered
	r.Use(Metrics())

	r.Get("/health", h.Health)
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.With(mw.RateLimit()).Post("/api/events/devices", h.DeviceEvents)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())

		r.Post("/telemetry", h.IngestTelemetry)
		r.Post("/alerts", h.IngestAlert)

		if h.audit != nil {
			r.Get("/alerts/audit", h.ListAuditRecords)
			r.Get("/alerts/audit/{alertId}", h.GetAuditRecord)
		}
		if h.devices != nil {
			r.Get("/devices", h.ListDevices)
			r.Get("/devices/{deviceId}", h.GetDevice)
		}
		if h.twins != nil {
			r.Get("/devices/{deviceId}/twin", h.GetTwin)
		}
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed", nil)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Route not found", nil)
	})
	return r
}
