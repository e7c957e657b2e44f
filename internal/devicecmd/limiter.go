// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package devicecmd

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// DeviceLimiter hands out one token bucket per device.
type DeviceLimiter struct {
	mu       sync.Mutex
	limiters map[domain.DeviceID]*limiterEntry
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewDeviceLimiter allows burst commands per device, refilled at perSecond.
// A non-positive perSecond disables limiting.
func NewDeviceLimiter(perSecond float64, burst int) *DeviceLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &DeviceLimiter{
		limiters: make(map[domain.DeviceID]*limiterEntry),
		rate:     limit,
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether id may receive another command now.
func (l *DeviceLimiter) Allow(id domain.DeviceID) bool {
	now := l.now()
	l.mu.Lock()
	entry, ok := l.limiters[id]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[id] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	l.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// Prune drops limiters idle for longer than idle and returns how many went.
func (l *DeviceLimiter) Prune(idle time.Duration) int {
	threshold := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for id, entry := range l.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(l.limiters, id)
			n++
		}
	}
	return n
}

func (l *DeviceLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
