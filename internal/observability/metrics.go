package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate by route template and status class.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per route template.
	HTTPRequestDuration *prometheus.HistogramVec

	// Outbound weather provider calls. status: success, non_2xx, transport_error.
	WeatherProviderCallsTotal *prometheus.CounterVec

	// Outbound weather provider latency.
	WeatherProviderDuration *prometheus.HistogramVec

	// Resolver lookups by source: store (cache hit), live (cache miss), error.
	WeatherResolveTotal *prometheus.CounterVec

	// Scheduled refresh ticks by outcome: success, failure.
	WeatherRefreshTotal *prometheus.CounterVec

	// Diary operations by operation and outcome.
	DiaryOperationsTotal *prometheus.CounterVec

	// Circuit breaker state of the weather provider: 0 closed, 1 half-open, 2 open.
	WeatherProviderCircuitState prometheus.Gauge
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	WeatherProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherProviderCallsTotal",
			Help: "Total number of weather provider calls",
		},
		[]string{"status"},
	)
	WeatherProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherProviderDurationSeconds",
			Help:    "Weather provider latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	WeatherResolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherResolveTotal",
			Help: "Weather lookups by date, labelled by where the record came from",
		},
		[]string{"source"},
	)
	WeatherRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherRefreshTotal",
			Help: "Scheduled daily weather refresh ticks",
		},
		[]string{"outcome"},
	)
	DiaryOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diaryOperationsTotal",
			Help: "Diary operations",
		},
		[]string{"operation", "outcome"},
	)
	WeatherProviderCircuitState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "weatherProviderCircuitState",
			Help: "Weather provider circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration,
		WeatherProviderCallsTotal, WeatherProviderDuration,
		WeatherResolveTotal, WeatherRefreshTotal,
		DiaryOperationsTotal,
		WeatherProviderCircuitState,
	)
}

// Outcome returns the outcome label for err.
func Outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
