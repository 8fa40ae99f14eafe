package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the harvester.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	VerdictsTotal     *prometheus.CounterVec
	BootstrapsTotal   *prometheus.CounterVec
	ItemsEmittedTotal *prometheus.CounterVec
	DuplicatesTotal   prometheus.Counter
	RetriesTotal      *prometheus.CounterVec
	OutcomesTotal     *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_requests_total",
			Help: "Total HTTP requests issued, by kind (bootstrap or page).",
		},
		[]string{"kind"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_request_duration_seconds",
			Help:    "HTTP request latency, by kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	verdicts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_verdicts_total",
			Help: "Classified page responses by verdict.",
		},
		[]string{"verdict"},
	)
	bootstraps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_bootstraps_total",
			Help: "Session bootstrap attempts by result.",
		},
		[]string{"result"},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_items_emitted_total",
			Help: "Items emitted to the sink, by category.",
		},
		[]string{"category"},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_items_dropped_total",
			Help: "Items dropped as duplicates or for missing identity.",
		},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_retries_total",
			Help: "Page retries by triggering verdict.",
		},
		[]string{"verdict"},
	)
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_category_outcomes_total",
			Help: "Finished categories by outcome.",
		},
		[]string{"outcome"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_errors_total",
			Help: "Total number of harvester errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, verdicts, bootstraps, items, duplicates, retries, outcomes, errorsTotal)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		VerdictsTotal:     verdicts,
		BootstrapsTotal:   bootstraps,
		ItemsEmittedTotal: items,
		DuplicatesTotal:   duplicates,
		RetriesTotal:      retries,
		OutcomesTotal:     outcomes,
		ErrorsTotal:       errorsTotal,
	}
}

// ObserveRequest counts a request and records its duration.
func (m *Metrics) ObserveRequest(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind).Inc()
	m.RequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncVerdict increments the verdict counter.
func (m *Metrics) IncVerdict(v Verdict) {
	if m == nil {
		return
	}
	m.VerdictsTotal.WithLabelValues(v.String()).Inc()
}

// IncBootstrap increments the bootstrap counter for a result label.
func (m *Metrics) IncBootstrap(result string) {
	if m == nil {
		return
	}
	m.BootstrapsTotal.WithLabelValues(result).Inc()
}

// IncItems increments the emitted items counter.
func (m *Metrics) IncItems(category string) {
	if m == nil {
		return
	}
	m.ItemsEmittedTotal.WithLabelValues(category).Inc()
}

// IncDropped increments the dropped items counter.
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.DuplicatesTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries(v Verdict) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(v.String()).Inc()
}

// IncOutcome increments the category outcome counter.
func (m *Metrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(outcome).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
