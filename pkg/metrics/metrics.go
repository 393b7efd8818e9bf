// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StreamDuration tracks chat stream duration from request to termination.
	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_stream_duration_seconds",
			Help:    "Chat streaming response duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// DeltasTotal tracks deltas yielded to callers by kind.
	DeltasTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_deltas_total",
			Help: "Total deltas yielded to callers",
		},
		[]string{"kind"},
	)

	// DecodeErrorsTotal tracks chunk lines skipped as malformed JSON.
	DecodeErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_decode_errors_total",
			Help: "Total stream lines skipped as malformed",
		},
	)

	// DecryptFailuresTotal tracks chunks replaced by decryption placeholders.
	DecryptFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_decrypt_failures_total",
			Help: "Total chunks that failed decryption",
		},
	)

	// ModelCacheLookups tracks model cache outcomes.
	ModelCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_model_cache_lookups_total",
			Help: "Model cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// GatewayRequestDuration tracks dev gateway request duration.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Dev gateway request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// GatewayRequestsTotal tracks total dev gateway requests.
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total dev gateway requests",
		},
		[]string{"method", "path", "status"},
	)

	// GatewayStreamsActive tracks in-flight SSE generations on the dev gateway.
	GatewayStreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_streams_active",
			Help: "Number of active SSE generations",
		},
	)
)

// Model cache lookup outcomes.
const (
	CacheHit        = "hit"
	CacheMiss       = "miss"
	CacheStaleServe = "stale_serve"
)

// RecordStream records metrics for one chat stream.
func RecordStream(model, status string, duration float64) {
	StreamDuration.WithLabelValues(model, status).Observe(duration)
}

// RecordDelta records one delta yielded to a caller.
func RecordDelta(kind string) {
	DeltasTotal.WithLabelValues(kind).Inc()
}

// RecordCacheLookup records one model cache lookup outcome.
func RecordCacheLookup(outcome string) {
	ModelCacheLookups.WithLabelValues(outcome).Inc()
}

// RecordGatewayRequest records metrics for one dev gateway request.
func RecordGatewayRequest(method, path, status string, duration float64) {
	GatewayRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	GatewayRequestsTotal.WithLabelValues(method, path, status).Inc()
}
