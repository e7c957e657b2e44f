// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package eventprocessor

import (
	"context"
	"testing"
	"time"
)

func TestHealthChecker_CheckAll(t *testing.T) {
	t.Parallel()

	healthy := HealthCheckFunc(func(context.Context) ComponentHealth { return ComponentHealth{Healthy: true} })
	degraded := HealthCheckFunc(func(context.Context) ComponentHealth { return ComponentHealth{Healthy: true, Degraded: true} })
	down := HealthCheckFunc(func(context.Context) ComponentHealth { return ComponentHealth{Error: "down"} })
	slow := HealthCheckFunc(func(ctx context.Context) ComponentHealth {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return ComponentHealth{Healthy: true}
	})

	tests := []struct {
		name       string
		components map[string]HealthCheckable
		want       HealthStatusType
	}{
		{name: "all healthy", components: map[string]HealthCheckable{"a": healthy, "b": healthy}, want: HealthStatusHealthy},
		{name: "one degraded", components: map[string]HealthCheckable{"a": healthy, "b": degraded}, want: HealthStatusDegraded},
		{name: "one down", components: map[string]HealthCheckable{"a": degraded, "b": down}, want: HealthStatusUnhealthy},
		{name: "timeout", components: map[string]HealthCheckable{"a": slow}, want: HealthStatusUnhealthy},
		{name: "empty", components: nil, want: HealthStatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			hc := NewHealthChecker(20 * time.Millisecond)
			for name, c := range tt.components {
				hc.RegisterComponent(name, c)
			}
			got := hc.CheckAll(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %q, want %q", got.Status, tt.want)
			}
			if got.Healthy != (tt.want != HealthStatusUnhealthy) {
				t.Errorf("Healthy = %v for status %q", got.Healthy, got.Status)
			}
			for name, c := range got.Components {
				if c.Name != name || c.LastCheck.IsZero() {
					t.Errorf("component %q not stamped: %+v", name, c)
				}
			}
		})
	}
}
