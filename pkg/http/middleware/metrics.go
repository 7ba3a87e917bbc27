package middleware

import (
	"strconv"
	"sync"
	"time"

	applogger "Stooorage/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	size     *prometheus.HistogramVec
}

var (
	httpOnce sync.Once
	httpM    *httpMetrics
)

func loadHTTPMetrics() *httpMetrics {
	httpOnce.Do(func() {
		m := &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stooorage",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route template, method and status.",
			}, []string{"route", "method", "status"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stooorage",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency.",
				// forecasts run for seconds, CRUD for milliseconds
				Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30, 60, 120},
			}, []string{"route", "method", "class"}),
			inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stooorage",
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Requests currently being served.",
			}),
			size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stooorage",
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Response body size.",
				Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
			}, []string{"route", "method"}),
		}
		prometheus.MustRegister(m.requests, m.duration, m.inFlight, m.size)
		httpM = m
	})
	return httpM
}

// Metrics records Prometheus request metrics labelled by the matched route
// template, and logs requests slower than slow at warn level.
func Metrics(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	m := loadHTTPMetrics()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				// resolve the status now; echo would otherwise write it after us
				c.Error(err)
			}
			elapsed := time.Since(start)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := c.Response().Status

			m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			m.duration.WithLabelValues(route, method, statusClass(status)).Observe(elapsed.Seconds())
			m.size.WithLabelValues(route, method).Observe(float64(c.Response().Size))

			if l != nil && slow > 0 && elapsed >= slow {
				l.Warn("http request slow",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.Int("status", status),
					applogger.Duration("duration_ms", elapsed),
				)
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}
