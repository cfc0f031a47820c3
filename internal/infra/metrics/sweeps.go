package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		purchasesExpired,
		tenantsDeactivated,
		expiryNotificationsSent,
		sweepDuration,
	)
}

var (
	purchasesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchases_expired_total",
			Help: "User purchases marked expired by the sweeper.",
		},
	)

	tenantsDeactivated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenants_deactivated_total",
			Help: "Tenants moved to inactive after subscription/trial expiry.",
		},
	)

	expiryNotificationsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expiry_notifications_sent_total",
			Help: "Advance expiry warnings delivered to buyers.",
		},
	)

	sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of sweeper passes in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"pass"}, // purchases|tenants|notify
	)
)

func AddPurchasesExpired(n int)    { purchasesExpired.Add(float64(n)) }
func AddTenantsDeactivated(n int)  { tenantsDeactivated.Add(float64(n)) }
func AddExpiryNotifications(n int) { expiryNotificationsSent.Add(float64(n)) }

func ObserveSweep(pass string, s float64) {
	sweepDuration.WithLabelValues(norm(pass)).Observe(s)
}
