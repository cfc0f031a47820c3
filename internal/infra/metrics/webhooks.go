package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookRequests,
		webhookDuration,
	)
}

var (
	// kind: messaging|payment
	// result: ok|auth_failed|ignored|error
	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Inbound webhook requests by kind and result.",
		},
		[]string{"kind", "result"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_duration_seconds",
			Help:    "Duration of webhook handlers in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"kind"},
	)
)

func IncWebhook(kind, result string) {
	webhookRequests.WithLabelValues(norm(kind), norm(result)).Inc()
}

func ObserveWebhookDuration(kind string, seconds float64) {
	webhookDuration.WithLabelValues(norm(kind)).Observe(seconds)
}
