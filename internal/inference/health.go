// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package inference

import (
	"sync"
	"time"

	"github.com/odly-dev/odly/pkg/health"
)

// healthTracker accumulates session counters for operator visibility. It
// never influences the recovery policy; State does.
type healthTracker struct {
	mu            sync.RWMutex
	loadAttempts  int64
	probeFailures int64
	reinits       int64
	failureCount  int64
	lastFailure   string
	failedAt      time.Time
	readySince    time.Time
	nowFunc       func() time.Time // for testing
}

func newHealthTracker() *healthTracker {
	return &healthTracker{nowFunc: time.Now}
}

func (h *healthTracker) recordLoad() {
	h.mu.Lock()
	h.loadAttempts++
	h.mu.Unlock()
}

func (h *healthTracker) recordReady() {
	h.mu.Lock()
	h.readySince = h.nowFunc()
	h.mu.Unlock()
}

func (h *healthTracker) recordReinit() {
	h.mu.Lock()
	h.reinits++
	h.mu.Unlock()
}

func (h *healthTracker) recordProbeFailure(err error) {
	h.mu.Lock()
	h.probeFailures++
	h.mu.Unlock()
	h.recordFailure(err)
}

func (h *healthTracker) recordFailure(err error) {
	h.mu.Lock()
	h.failureCount++
	h.failedAt = h.nowFunc()
	if err != nil {
		h.lastFailure = err.Error()
	}
	h.mu.Unlock()
}

func (h *healthTracker) setNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// snapshot returns a point-in-time copy that holds no references to tracker state.
func (h *healthTracker) snapshot(state State, modelPath string) health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{
		State:         state.String(),
		ModelPath:     modelPath,
		LoadAttempts:  h.loadAttempts,
		ProbeFailures: h.probeFailures,
		Reinits:       h.reinits,
		FailureCount:  h.failureCount,
		LastFailure:   h.lastFailure,
		Available:     state == StateReady,
	}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	if state == StateReady {
		t := h.readySince
		m.ReadySince = &t
	}
	return m
}
