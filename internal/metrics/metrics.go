// Package metrics provides Prometheus metrics for the pull pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a run.
type Metrics struct {
	APICallsTotal      *prometheus.CounterVec
	CacheRequestsTotal *prometheus.CounterVec
	SkippedTotal       *prometheus.CounterVec
	RunProgress        prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		APICallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dtools_api_calls_total",
				Help: "Total D-Tools API calls by endpoint and status.",
			},
			[]string{"endpoint", "status"},
		),
		CacheRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dtools_cache_requests_total",
				Help: "Cache lookups by entity kind and result.",
			},
			[]string{"kind", "result"},
		),
		SkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dtools_entities_skipped_total",
				Help: "Entities omitted from the report after fetch failures.",
			},
			[]string{"kind"},
		),
		RunProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dtools_run_progress_ratio",
				Help: "Fraction of opportunities processed in the current run.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.APICallsTotal)
	reg.MustRegister(m.CacheRequestsTotal)
	reg.MustRegister(m.SkippedTotal)
	reg.MustRegister(m.RunProgress)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAPICall increments the API call counter.
func (m *Metrics) RecordAPICall(endpoint, status string) {
	m.APICallsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordCache increments the cache lookup counter.
func (m *Metrics) RecordCache(kind, result string) {
	m.CacheRequestsTotal.WithLabelValues(kind, result).Inc()
}

// RecordSkipped increments the skipped entity counter.
func (m *Metrics) RecordSkipped(kind string) {
	m.SkippedTotal.WithLabelValues(kind).Inc()
}

// SetProgress sets the run progress gauge.
func (m *Metrics) SetProgress(fraction float64) {
	m.RunProgress.Set(fraction)
}
