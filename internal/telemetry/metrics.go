// Package telemetry exports Prometheus metrics for the content pipeline.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finblog"

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FetchItems      *prometheus.CounterVec
	FetchSourceErrs *prometheus.CounterVec
	DraftsGenerated *prometheus.CounterVec
	RewriteStages   *prometheus.CounterVec
	RewriteDuration *prometheus.HistogramVec
	AIRequests      *prometheus.CounterVec
	Publications    *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FetchItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_items_total",
			Help:      "Candidate items seen by the source fetcher, by outcome.",
		}, []string{"category", "outcome"}),
		FetchSourceErrs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_source_errors_total",
			Help:      "Source reads that failed and were skipped.",
		}, []string{"source", "kind"}),
		DraftsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_generated_total",
			Help:      "Draft generation attempts, by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		RewriteStages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewrite_stage_total",
			Help:      "Rewrite stage executions, by step and outcome.",
		}, []string{"step", "outcome"}),
		RewriteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rewrite_stage_duration_seconds",
			Help:      "Wall time of each rewrite stage.",
			Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 20, 40},
		}, []string{"step"}),
		AIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "AI transform calls, by provider and result class.",
		}, []string{"provider", "class"}),
		Publications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publications_total",
			Help:      "Approve calls, by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordFetchItem counts one candidate outcome: new, duplicate or over_cap.
func (m *Metrics) RecordFetchItem(category, outcome string) {
	if m == nil {
		return
	}
	m.FetchItems.WithLabelValues(category, outcome).Inc()
}

// RecordSourceError counts a skipped source.
func (m *Metrics) RecordSourceError(source, kind string) {
	if m == nil {
		return
	}
	m.FetchSourceErrs.WithLabelValues(source, kind).Inc()
}

// RecordDraft counts one generation attempt.
func (m *Metrics) RecordDraft(strategy, outcome string) {
	if m == nil {
		return
	}
	m.DraftsGenerated.WithLabelValues(strategy, outcome).Inc()
}

// RecordStage counts one stage run and its duration.
func (m *Metrics) RecordStage(step, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RewriteStages.WithLabelValues(step, outcome).Inc()
	m.RewriteDuration.WithLabelValues(step).Observe(d.Seconds())
}

// RecordAIRequest counts one transform call.
func (m *Metrics) RecordAIRequest(provider, class string) {
	if m == nil {
		return
	}
	m.AIRequests.WithLabelValues(provider, class).Inc()
}

// RecordPublication counts one approve outcome.
func (m *Metrics) RecordPublication(outcome string) {
	if m == nil {
		return
	}
	m.Publications.WithLabelValues(outcome).Inc()
}
