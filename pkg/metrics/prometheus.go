package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	salesTotal   *prometheus.CounterVec
	unitsSold    *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	forecastsRun *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		salesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stooorage_sales_total",
				Help: "Total number of recorded sale transactions",
			},
			[]string{"country"},
		),
		unitsSold: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stooorage_units_sold_total",
				Help: "Total units sold",
			},
			[]string{"country"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stooorage_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		forecastsRun: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stooorage_forecasts_total",
				Help: "Forecast runs by scope, granularity and result",
			},
			[]string{"scope", "granularity", "result"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stooorage_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
	}
}

// RecordSale counts one sale and its units.
func (r *Recorder) RecordSale(country string, quantity int64) {
	if country == "" {
		country = "unknown"
	}
	r.salesTotal.WithLabelValues(country).Inc()
	r.unitsSold.WithLabelValues(country).Add(float64(quantity))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordForecast records the outcome of a forecast run.
func (r *Recorder) RecordForecast(scope, granularity, result string) {
	r.forecastsRun.WithLabelValues(scope, granularity, result).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
