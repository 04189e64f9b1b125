// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the chat relay.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM completion latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// BackoffBuckets covers the retry wait range: 2^attempt seconds plus up to
// one second of jitter, for attempts 0..2.
var BackoffBuckets = []float64{0.5, 1, 1.5, 2, 3, 5, 8}

var (
	// RequestsTotal counts all HTTP requests by endpoint and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total requests",
		},
		[]string{"endpoint", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by endpoint.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"endpoint"},
	)

	// StreamingConnections tracks the number of active SSE connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// StreamEventsTotal counts SSE events sent downstream by type.
	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_stream_events_total",
			Help: "Stream events sent",
		},
		[]string{"type"},
	)

	// UpstreamAttemptsTotal counts completion API attempts by outcome:
	// "success" or the error kind of the failed attempt.
	UpstreamAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_upstream_attempts_total",
			Help: "Upstream attempts",
		},
		[]string{"outcome"},
	)

	// UpstreamLatency records successful upstream round-trip time in seconds.
	UpstreamLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_upstream_latency_seconds",
			Help:    "Upstream latency",
			Buckets: LLMBuckets,
		},
	)

	// UpstreamRetriesTotal counts retry waits entered after failed attempts.
	UpstreamRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_upstream_retries_total",
			Help: "Upstream retries",
		},
	)

	// UpstreamBackoffSeconds records the backoff wait before each retry.
	UpstreamBackoffSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_upstream_backoff_seconds",
			Help:    "Backoff wait before retry",
			Buckets: BackoffBuckets,
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		StreamEventsTotal,
		UpstreamAttemptsTotal,
		UpstreamLatency,
		UpstreamRetriesTotal,
		UpstreamBackoffSeconds,
		RateLimitRejectedTotal,
	)
}
