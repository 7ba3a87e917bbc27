package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EndpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stooorage",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of forecast and report endpoints",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)

	EndpointErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stooorage",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	CacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stooorage",
			Subsystem: "api",
			Name:      "cache_total",
			Help:      "Forecast response cache lookups by result",
		},
		[]string{"endpoint", "result"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stooorage",
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(EndpointLatency, EndpointErrors, CacheResults, RateLimited)
	})
}
