package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexttale_gateway_requests_total",
			Help: "Total number of requests to generation providers.",
		},
		[]string{"provider", "operation", "status"},
	)
	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexttale_gateway_request_duration_seconds",
			Help:    "Histogram of generation provider request durations.",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 15, 25, 45, 90},
		},
		[]string{"provider", "operation"},
	)
	gatewayTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexttale_gateway_tokens",
			Help:    "Histogram of token counts reported by text providers.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"provider", "kind"},
	)
)

const (
	opStory = "story"
	opImage = "image"
	opVideo = "video"
)

func observeRequest(provider, operation, status string, started time.Time) {
	gatewayRequestsTotal.With(prometheus.Labels{"provider": provider, "operation": operation, "status": status}).Inc()
	gatewayRequestDuration.With(prometheus.Labels{"provider": provider, "operation": operation}).Observe(time.Since(started).Seconds())
}

func observeTokens(provider string, prompt, completion int) {
	if prompt > 0 {
		gatewayTokens.With(prometheus.Labels{"provider": provider, "kind": "prompt"}).Observe(float64(prompt))
	}
	if completion > 0 {
		gatewayTokens.With(prometheus.Labels{"provider": provider, "kind": "completion"}).Observe(float64(completion))
	}
}
