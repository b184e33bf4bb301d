// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_image_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meal_image_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meal_image_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	// Generation metrics
	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_image_generation_attempts_total",
			Help: "Calls made to the external image model",
		},
		[]string{"provider"},
	)

	Generations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_image_generations_total",
			Help: "Generation requests by outcome",
		},
		[]string{"outcome"},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meal_image_generation_duration_seconds",
			Help:    "End to end generation latency including retries",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	CompositeFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meal_image_composite_fallbacks_total",
			Help: "Generations served without overlay because compositing failed",
		},
	)

	FilesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meal_image_files_removed_total",
			Help: "Generated files deleted by cleanup",
		},
	)

	// Rate limiting metrics
	RateLimitRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meal_image_rate_limit_rejects_total",
			Help: "Total number of requests rejected due to rate limiting",
		},
	)
)

// Generation outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailure  = "failure"
)
