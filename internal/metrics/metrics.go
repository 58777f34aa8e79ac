// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics counts pipeline outcomes in a private prometheus registry.
// The CLI is short-lived, so metrics are exported by writing the registry in
// text exposition format to a file (node_exporter textfile collector style)
// rather than by serving /metrics.
//
// All Record methods are nil-safe; components receive a nil *Metrics when
// metrics are not wanted.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "literature"

// Metrics holds the run counters.
type Metrics struct {
	registry *prometheus.Registry

	// SearchResults counts results returned, labeled by source.
	SearchResults *prometheus.CounterVec

	// SearchFailures counts failed source queries, labeled by source and kind
	// (error or rate_limited).
	SearchFailures *prometheus.CounterVec

	// Downloads counts acquisition outcomes, labeled by outcome
	// (downloaded, existing, suppressed, or a failure reason).
	Downloads *prometheus.CounterVec

	// Summaries counts summarization outcomes, labeled by outcome
	// (success, skipped, or a failure category).
	Summaries *prometheus.CounterVec

	// SummaryDuration observes per-paper generation time in seconds.
	SummaryDuration prometheus.Histogram
}

// New creates a Metrics backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SearchResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_results_total",
			Help:      "Search results returned, by source.",
		}, []string{"source"}),
		SearchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_failures_total",
			Help:      "Failed source queries, by source and kind.",
		}, []string{"source", "kind"}),
		Downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "PDF acquisition outcomes.",
		}, []string{"outcome"}),
		Summaries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summarization outcomes.",
		}, []string{"outcome"}),
		SummaryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_duration_seconds",
			Help:      "Per-paper summary generation time.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSearch records one successful source query.
func (m *Metrics) RecordSearch(source string, results int) {
	if m == nil {
		return
	}
	m.SearchResults.WithLabelValues(source).Add(float64(results))
}

// RecordSearchFailure records one failed source query.
func (m *Metrics) RecordSearchFailure(source string, rateLimited bool) {
	if m == nil {
		return
	}
	kind := "error"
	if rateLimited {
		kind = "rate_limited"
	}
	m.SearchFailures.WithLabelValues(source, kind).Inc()
}

// RecordDownload records one acquisition outcome.
func (m *Metrics) RecordDownload(outcome string) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(outcome).Inc()
}

// RecordSummary records one summarization outcome and its duration.
func (m *Metrics) RecordSummary(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Summaries.WithLabelValues(outcome).Inc()
	if seconds > 0 {
		m.SummaryDuration.Observe(seconds)
	}
}

// WriteTextfile writes all metrics in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
