// Package metrics holds the Prometheus collectors for the backend.
//
// Collectors register with the default registry through promauto; the backend
// serves them on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tidal_mcp"

// Seed fetch outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
)

var (
	// Recommendation fan-out
	SeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "seed_fetches_total",
			Help:      "Per-seed similar-track lookups by outcome",
		},
		[]string{"outcome"},
	)

	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "aggregation_duration_seconds",
			Help:      "Wall time of one batch recommendation",
			Buckets:   prometheus.DefBuckets,
		},
	)

	AggregationCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "candidates",
			Help:      "Candidates returned by one batch recommendation",
			Buckets:   []float64{0, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
	)

	DuplicatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "duplicates_dropped_total",
			Help:      "Candidates skipped because another seed already produced the track",
		},
	)

	// Upstream TIDAL API
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Requests sent to the TIDAL API",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of TIDAL API requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// Backend HTTP API
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served by the backend",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of backend requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordSeedFetch counts one per-seed lookup.
func RecordSeedFetch(outcome string) {
	SeedFetches.WithLabelValues(outcome).Inc()
}

// RecordAggregation observes one completed batch.
func RecordAggregation(duration time.Duration, candidates, duplicates int) {
	AggregationDuration.Observe(duration.Seconds())
	AggregationCandidates.Observe(float64(candidates))
	DuplicatesDropped.Add(float64(duplicates))
}

// RecordUpstream observes one TIDAL API call. A status of 0 means the request never got a response.
func RecordUpstream(endpoint string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequests.WithLabelValues(endpoint, label).Inc()
	UpstreamDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// SetBreakerState publishes the numeric breaker state for name.
func SetBreakerState(name string, state int) {
	BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordHTTPRequest observes one backend request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
