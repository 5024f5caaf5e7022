// Package metrics holds the prometheus collectors for a harvest process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "harvest"

// Registry is the process-wide collector registry served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// resolutions counts accepted dates by source tag; "uncertain" counts
	// records left for review.
	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "date_resolutions_total",
			Help:      "Milestone date resolutions by source tag",
		},
		[]string{"source"},
	)

	dedupMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_comparisons_total",
			Help:      "Pairwise duplicate checks by match type",
		},
		[]string{"match_type"},
	)

	duplicatesRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Records dropped during aggregation",
		},
		[]string{"stage"},
	)

	calendarCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_cache_lookups_total",
			Help:      "Calendar cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	circuitTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"service", "to"},
	)

	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Harvest sessions by final status",
		},
		[]string{"status"},
	)

	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a harvest session",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
)

func init() {
	Registry.MustRegister(
		resolutions,
		dedupMatches,
		duplicatesRemoved,
		calendarCache,
		circuitTransitions,
		runs,
		runDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveResolution records the source tag a resolution ended with.
func ObserveResolution(source string) {
	resolutions.WithLabelValues(source).Inc()
}

// ObserveDedupMatch records one pairwise comparison outcome.
func ObserveDedupMatch(matchType string) {
	dedupMatches.WithLabelValues(matchType).Inc()
}

// AddDuplicatesRemoved records drops for a stage ("same_origin" or "semantic").
func AddDuplicatesRemoved(stage string, n int) {
	if n > 0 {
		duplicatesRemoved.WithLabelValues(stage).Add(float64(n))
	}
}

// ObserveCalendarCache records a cache lookup for kind.
func ObserveCalendarCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	calendarCache.WithLabelValues(kind, result).Inc()
}

// ObserveCircuitTransition records a breaker moving to state to.
func ObserveCircuitTransition(service, to string) {
	circuitTransitions.WithLabelValues(service, to).Inc()
}

// ObserveRun records a finished session.
func ObserveRun(status string, seconds float64) {
	runs.WithLabelValues(status).Inc()
	runDuration.Observe(seconds)
}
