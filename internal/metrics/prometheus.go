// prometheus.go - Prometheus collectors fed by the usage tracker

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "receipt_vision"

var (
	extractionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "attempts_total",
			Help:      "Total number of provider extraction attempts",
		},
		[]string{"provider", "status"},
	)

	extractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "attempt_duration_seconds",
			Help:      "Provider extraction attempt duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 180},
		},
		[]string{"provider"},
	)

	extractionCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "cost_usd_total",
			Help:      "Accumulated estimated provider cost in USD",
		},
		[]string{"provider"},
	)

	// CacheLookups is incremented by the orchestrator on every cache check.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by outcome",
		},
		[]string{"outcome"}, // "hit" or "miss"
	)
)

func recordPrometheus(provider string, success bool, latency time.Duration, costUSD float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	extractionTotal.WithLabelValues(provider, status).Inc()
	extractionDuration.WithLabelValues(provider).Observe(latency.Seconds())
	extractionCost.WithLabelValues(provider).Add(costUSD)
}
