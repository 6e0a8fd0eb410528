package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rubricrank"

// Document scoring outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeEmpty  = "empty"
	OutcomeFailed = "failed"
)

// Metrics holds the Prometheus collectors on a private registry. All methods
// are safe on a nil receiver so callers can leave metrics unwired.
type Metrics struct {
	registry *prometheus.Registry

	searchRequests  *prometheus.CounterVec
	searchDuration  *prometheus.HistogramVec
	documentsScored *prometheus.CounterVec
	scoreRetries    prometheus.Counter
	indexJobs       *prometheus.CounterVec
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		searchRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_requests_total",
				Help:      "Total number of search requests",
			},
			[]string{"mode", "status"},
		),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Search duration in seconds, including rubric rerank",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"mode"},
		),
		documentsScored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_scored_total",
				Help:      "Documents resolved by the rubric batch indexer",
			},
			[]string{"outcome"}, // "ok" / "empty" / "failed"
		),
		scoreRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "score_retries_total",
				Help:      "Total scoring call retries",
			},
		),
		indexJobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_jobs_total",
				Help:      "Rubric index jobs by terminal state",
			},
			[]string{"state"},
		),
	}

	m.registry.MustRegister(
		m.searchRequests,
		m.searchDuration,
		m.documentsScored,
		m.scoreRetries,
		m.indexJobs,
	)
	return m
}

// Registry returns the private registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSearch records one search request.
func (m *Metrics) ObserveSearch(mode, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.searchRequests.WithLabelValues(mode, status).Inc()
	m.searchDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// DocumentScored records one resolved document.
func (m *Metrics) DocumentScored(outcome string) {
	if m == nil {
		return
	}
	m.documentsScored.WithLabelValues(outcome).Inc()
}

// ScoreRetry records one retried scoring call.
func (m *Metrics) ScoreRetry() {
	if m == nil {
		return
	}
	m.scoreRetries.Inc()
}

// IndexJob records a job reaching a terminal state.
func (m *Metrics) IndexJob(state string) {
	if m == nil {
		return
	}
	m.indexJobs.WithLabelValues(state).Inc()
}
