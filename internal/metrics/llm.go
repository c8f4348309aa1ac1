package metrics

import "github.com/prometheus/client_golang/prometheus"

// LLM provider Prometheus metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "airweave",
			Name:      "llm_requests_total",
			Help:      "Total number of LLM completion attempts",
		},
		[]string{"provider", "outcome"}, // success / error / breaker_open / rate_limited
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "airweave",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM completion duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "airweave",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"provider", "type"},
	)

	LLMBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "airweave",
			Name:      "llm_breaker_state",
			Help:      "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)
)

var llmMetricsRegistered bool

// RegisterLLMMetrics registers Prometheus LLM metrics. Must be called once from main.
func RegisterLLMMetrics() {
	if llmMetricsRegistered {
		return
	}
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokensTotal)
	prometheus.MustRegister(LLMBreakerState)
	llmMetricsRegistered = true
}
