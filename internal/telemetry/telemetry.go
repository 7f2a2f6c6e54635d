// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

// Package telemetry holds the prometheus collectors shared by odly components.
// A nil *Metrics is valid and records nothing, so components never need to
// guard their instrumentation calls.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "odly"

// Metrics groups every collector registered by odly.
type Metrics struct {
	sessionLoads    *prometheus.CounterVec
	sessionReinits  *prometheus.CounterVec
	probeFailures   prometheus.Counter
	queryDuration   *prometheus.HistogramVec
	sourcesSkipped  *prometheus.CounterVec
	clusterOutcomes *prometheus.CounterVec
	mutations       *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sessionLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "session_loads_total",
			Help:      "Model load attempts by result.",
		}, []string{"result"}),
		sessionReinits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "session_reinits_total",
			Help:      "Automatic reinitializations after a failed probe or invalidation, by result.",
		}, []string{"result"}),
		probeFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "probe_failures_total",
			Help:      "Liveness probes that failed.",
		}),
		queryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "query_duration_seconds",
			Help:      "Generation latency by result.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
		}, []string{"result"}),
		sourcesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "knowledge",
			Name:      "sources_skipped_total",
			Help:      "Knowledge sources left out of an assembled context, by reason.",
		}, []string{"reason"}),
		clusterOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cluster",
			Name:      "semantic_runs_total",
			Help:      "Semantic clustering runs by outcome (parsed, fallback, skipped, empty).",
		}, []string{"outcome"}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mutation",
			Name:      "resolutions_total",
			Help:      "Guarded mutations by resolution (commit, rollback, rollback_failed).",
		}, []string{"resolution"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) SessionLoad(err error) {
	if m == nil {
		return
	}
	m.sessionLoads.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) SessionReinit(err error) {
	if m == nil {
		return
	}
	m.sessionReinits.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ProbeFailure() {
	if m == nil {
		return
	}
	m.probeFailures.Inc()
}

func (m *Metrics) Query(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(result(err)).Observe(d.Seconds())
}

func (m *Metrics) SourceSkipped(reason string) {
	if m == nil {
		return
	}
	m.sourcesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ClusterOutcome(outcome string) {
	if m == nil {
		return
	}
	m.clusterOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Mutation(resolution string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(resolution).Inc()
}
