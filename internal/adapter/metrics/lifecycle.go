package metrics

import "github.com/prometheus/client_golang/prometheus"

// LifecycleMetrics holds Prometheus metrics for the session lifecycle coordinator.
type LifecycleMetrics struct {
	WebhookEvents       *prometheus.CounterVec
	Reconciliations     *prometheus.CounterVec
	PendingReconciles   prometheus.Gauge
	SessionsFinalized   *prometheus.CounterVec
	NotificationsFailed prometheus.Counter
}

// NewLifecycleMetrics creates and registers lifecycle metrics on the given registry.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	m := &LifecycleMetrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "webhook_events_total",
			Help:      "Total number of provider webhook events handled, by kind and result.",
		}, []string{"kind", "result"}),
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "reconciliations_total",
			Help:      "Total number of delayed end reconciliations, by outcome.",
		}, []string{"outcome"}),
		PendingReconciles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "pending_reconciliations",
			Help:      "Number of reconciliation tasks scheduled but not yet run on this instance.",
		}),
		SessionsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "sessions_finalized_total",
			Help:      "Total number of sessions finalized, by trigger.",
		}, []string{"trigger"}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "notifications_failed_total",
			Help:      "Total number of session status notifications that could not be published.",
		}),
	}

	reg.MustRegister(m.WebhookEvents, m.Reconciliations, m.PendingReconciles, m.SessionsFinalized, m.NotificationsFailed)
	return m
}
