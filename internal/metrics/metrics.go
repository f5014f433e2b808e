// Package metrics registers the Prometheus metrics used by the gateway.
// All collectors are registered on the default registry at package init, so
// importing this package is enough before mounting promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request-level counters and histograms.
var (
	// RequestsTotal counts completed API requests labelled by chi route
	// pattern and HTTP status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genaigw_requests_total",
			Help: "Total number of API requests handled by the gateway.",
		},
		[]string{"route", "status"},
	)

	// RequestDuration observes end-to-end request latency in seconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genaigw_request_duration_seconds",
			Help:    "End-to-end request duration in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"route"},
	)

	// ErrorsTotal counts error payloads written to clients by taxonomy code.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genaigw_errors_total",
			Help: "Total error responses by error code.",
		},
		[]string{"code"},
	)

	// RateLimitRejections counts requests rejected by the inbound limiter.
	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genaigw_rate_limit_rejections_total",
			Help: "Total requests rejected by inbound rate limiting.",
		},
	)
)

// Key-pool health.
var (
	// KeyOutcomes counts reported provider call outcomes per key id
	// ("success", "failure").
	KeyOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genaigw_key_outcomes_total",
			Help: "Provider call outcomes reported against each API key.",
		},
		[]string{"key_id", "outcome"},
	)

	// KeyCooldown is the remaining cooldown per key in seconds, 0 when eligible.
	KeyCooldown = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "genaigw_key_cooldown_seconds",
			Help: "Remaining cooldown per API key in seconds (0 = eligible).",
		},
		[]string{"key_id"},
	)

	// KeysAvailable is the number of keys eligible at the last pool update.
	KeysAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "genaigw_keys_available",
			Help: "Number of API keys currently eligible for selection.",
		},
	)

	// PoolExhausted counts acquisitions rejected because every key was cooling down.
	PoolExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genaigw_key_pool_exhausted_total",
			Help: "Acquisitions rejected because every key was cooling down.",
		},
	)
)
