package oar

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservoir",
			Subsystem: "oar",
			Name:      "api_calls_total",
			Help:      "Total number of testbed API calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reservoir",
			Subsystem: "oar",
			Name:      "api_latency_seconds",
			Help:      "Latency of testbed API calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(apiCallsTotal, apiLatency)
}

func recordCall(operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	apiCallsTotal.WithLabelValues(operation, result).Inc()
	apiLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
