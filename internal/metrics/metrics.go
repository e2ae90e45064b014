// Package metrics exposes Prometheus metrics for the HTTP API and the
// submission pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mutual"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	DraftSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "drafts",
			Name:      "saves_total",
			Help:      "Draft saves by result (created, updated, failed)",
		},
		[]string{"result"},
	)

	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "total",
			Help:      "Publish attempts by outcome",
		},
		[]string{"outcome"},
	)

	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "duration_seconds",
			Help:      "Time spent creating a change request",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	RegistryFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "fetch_total",
			Help:      "Open change-request listings by result (ok, error, cache_hit)",
		},
		[]string{"result"},
	)
)

// Publish outcomes.
const (
	OutcomeCreated   = "created"
	OutcomeLedger    = "ledger_hit"
	OutcomeExisting  = "existing_open"
	OutcomeRecovered = "recovered"
	OutcomeFailed    = "failed"
)

// ObservePublish records one publish attempt.
func ObservePublish(outcome string, d time.Duration) {
	PublishTotal.WithLabelValues(outcome).Inc()
	PublishDuration.Observe(d.Seconds())
}

// Timer is a helper for measuring operation duration.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time since the timer was created.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}
