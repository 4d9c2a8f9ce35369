// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusCreated  = "created"
	StatusExisting = "existing"
	StatusFound    = "found"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	URLCreationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "url_creation_total",
			Help: "Total number of shorten requests by outcome",
		},
		[]string{"status"},
	)

	URLAccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "url_access_total",
			Help: "Total number of redirects by outcome",
		},
		[]string{"status"},
	)

	AllocationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "short_code_allocation_attempts",
			Help:    "Number of candidates generated per successful short code allocation",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of short code cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of short code cache misses",
		},
	)

	CacheErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Total number of failed cache operations",
		},
	)
)

func RecordHTTPMetrics(method, route, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
