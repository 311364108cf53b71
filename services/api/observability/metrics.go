package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ingestion outcomes per mode. Watch for: outcome!="ok" growing while ok stays flat.
	IngestRunsTotal   *prometheus.CounterVec
	IngestRunDuration *prometheus.HistogramVec

	// Provider latency by status class ("2xx", "4xx", "error", "circuit_open").
	ProviderFetchDuration *prometheus.HistogramVec

	// 1 once the cache slot holds a snapshot.
	CachePopulated prometheus.Gauge

	RetentionPrunedRowsTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	IngestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Ingestion runs by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)
	IngestRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Wall time of one ingestion run",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"},
	)
	ProviderFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_fetch_duration_seconds",
			Help:    "Weather provider request latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	CachePopulated = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_populated",
			Help: "1 when the latest-observation cache holds a snapshot",
		},
	)
	RetentionPrunedRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_pruned_rows_total",
			Help: "Rows removed from weather_observations by retention",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration,
		IngestRunsTotal, IngestRunDuration,
		ProviderFetchDuration,
		CachePopulated,
		RetentionPrunedRowsTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
