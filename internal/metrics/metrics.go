package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_requests_total",
			Help: "Total number of chat requests processed",
		},
		[]string{"provider", "model", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_tokens_total",
			Help: "Total number of tokens reported by upstream usage",
		},
		[]string{"provider", "model", "type"},
	)

	StreamChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_stream_chunks_total",
			Help: "Total number of SSE frames relayed to clients",
		},
		[]string{"endpoint"},
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_provider_errors_total",
			Help: "Total number of provider errors",
		},
		[]string{"provider", "error_type"},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_active_streams",
			Help: "Number of active SSE connections",
		},
	)
)

func RecordRequest(provider, model, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(provider, model, status).Inc()
	RequestDuration.WithLabelValues(provider, model).Observe(durationSec)
}

func RecordTokens(provider, model string, promptTokens, completionTokens int) {
	TokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	TokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

func RecordStreamChunk(endpoint string) {
	StreamChunksTotal.WithLabelValues(endpoint).Inc()
}

func RecordProviderError(provider, errorType string) {
	ProviderErrors.WithLabelValues(provider, errorType).Inc()
}

func IncActiveStreams() {
	ActiveStreams.Inc()
}

func DecActiveStreams() {
	ActiveStreams.Dec()
}
