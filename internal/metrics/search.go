package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "airweave",
			Name:      "search_requests_total",
			Help:      "Total number of search requests by final status",
		},
		[]string{"status"}, // success / no_relevant_results / no_results / error
	)

	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "airweave",
			Name:      "search_stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage", "outcome"}, // outcome: ok / skipped / degraded / failed
	)

	SearchDegradationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "airweave",
			Name:      "search_degradations_total",
			Help:      "Optional stage failures that were recovered from",
		},
		[]string{"stage"},
	)

	FederationBranchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "airweave",
			Name:      "federation_branches_total",
			Help:      "Per-collection federation branch outcomes",
		},
		[]string{"collection", "outcome"}, // ok / timeout / error
	)

	SearchResultsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "airweave",
			Name:      "search_results_returned",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchStageDuration)
	prometheus.MustRegister(SearchDegradationsTotal)
	prometheus.MustRegister(FederationBranchesTotal)
	prometheus.MustRegister(SearchResultsReturned)
	searchMetricsRegistered = true
}
