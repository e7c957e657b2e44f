// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package eventprocessor

import (
	"context"
	"sort"
	"sync"
	"time"
)

type HealthStatusType string

const (
	HealthStatusHealthy   HealthStatusType = "healthy"
	HealthStatusDegraded  HealthStatusType = "degraded"
	HealthStatusUnhealthy HealthStatusType = "unhealthy"
)

// ComponentHealth is the result of checking one component.
type ComponentHealth struct {
	Healthy   bool                   `json:"healthy"`
	Degraded  bool                   `json:"degraded,omitempty"`
	Name      string                 `json:"name"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	LastCheck time.Time              `json:"last_check"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HealthCheckable is implemented by components that report their health.
type HealthCheckable interface {
	HealthCheck(ctx context.Context) ComponentHealth
}

// HealthCheckFunc adapts a function to HealthCheckable.
type HealthCheckFunc func(ctx context.Context) ComponentHealth

func (f HealthCheckFunc) HealthCheck(ctx context.Context) ComponentHealth { return f(ctx) }

// OverallHealth aggregates every registered component.
type OverallHealth struct {
	Healthy    bool                       `json:"healthy"`
	Status     HealthStatusType           `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthChecker runs registered checks in parallel, each under its own timeout.
type HealthChecker struct {
	timeout    time.Duration
	mu         sync.RWMutex
	components map[string]HealthCheckable
}

// NewHealthChecker creates a checker. A non-positive timeout means 5 seconds.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		timeout:    timeout,
		components: make(map[string]HealthCheckable),
	}
}

func (h *HealthChecker) RegisterComponent(name string, component HealthCheckable) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = component
}

// Names returns registered component names in sorted order.
func (h *HealthChecker) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.components))
	for name := range h.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckAll checks every component. Any unhealthy component makes the whole
// unhealthy; otherwise any degraded one makes it degraded.
func (h *HealthChecker) CheckAll(ctx context.Context) OverallHealth {
	h.mu.RLock()
	components := make(map[string]HealthCheckable, len(h.components))
	for name, c := range h.components {
		components[name] = c
	}
	h.mu.RUnlock()

	overall := OverallHealth{
		Healthy:    true,
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth, len(components)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, comp := range components {
		wg.Add(1)
		go func(name string, comp HealthCheckable) {
			defer wg.Done()
			result := h.check(ctx, name, comp)

			mu.Lock()
			defer mu.Unlock()
			overall.Components[name] = result
			if !result.Healthy {
				overall.Healthy = false
				overall.Status = HealthStatusUnhealthy
			} else if result.Degraded && overall.Status == HealthStatusHealthy {
				overall.Status = HealthStatusDegraded
			}
		}(name, comp)
	}
	wg.Wait()

	return overall
}

func (h *HealthChecker) check(ctx context.Context, name string, comp HealthCheckable) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resultCh := make(chan ComponentHealth, 1)
	go func() {
		resultCh <- comp.HealthCheck(checkCtx)
	}()

	var result ComponentHealth
	select {
	case result = <-resultCh:
	case <-checkCtx.Done():
		result = ComponentHealth{Error: "health check timeout"}
	}
	result.Name = name
	result.LastCheck = time.Now()
	return result
}
