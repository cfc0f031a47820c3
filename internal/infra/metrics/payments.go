package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		salesTransitions,
		fulfillmentsTotal,
		activationCodesDelivered,
		signatureFailures,
		insecureWebhookTenants,
	)
}

var (
	// Sale state transitions applied by the reconciliation pipeline.
	// to: approved|cancelled|failed; outcome: applied|noop
	salesTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_transitions_total",
			Help: "Sale status transitions by target state and outcome.",
		},
		[]string{"to", "outcome"},
	)

	// kind: activation_code|content|group_invite|subscription
	// status: delivered|delivery_failed
	fulfillmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillments_total",
			Help: "Fulfillment executions by product kind and delivery status.",
		},
		[]string{"kind", "status"},
	)

	activationCodesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "activation_codes_delivered_total",
			Help: "Activation codes moved from stock to used.",
		},
	)

	signatureFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_signature_failures_total",
			Help: "Rejected payment webhooks by reason (missing_header|mismatch).",
		},
		[]string{"reason"},
	)

	insecureWebhookTenants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_insecure_total",
			Help: "Payment webhooks accepted without a configured signing secret, per tenant.",
		},
		[]string{"tenant"},
	)
)

func IncSaleTransition(to, outcome string) {
	salesTransitions.WithLabelValues(norm(to), norm(outcome)).Inc()
}

func IncFulfillment(kind, status string) {
	fulfillmentsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func IncActivationCodeDelivered() { activationCodesDelivered.Inc() }

func IncSignatureFailure(reason string) {
	signatureFailures.WithLabelValues(norm(reason)).Inc()
}

func IncInsecureWebhook(tenant string) {
	insecureWebhookTenants.WithLabelValues(tenant).Inc()
}
