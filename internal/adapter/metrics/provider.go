package metrics

import "github.com/prometheus/client_golang/prometheus"

// ProviderMetrics holds Prometheus metrics for calls to the media provider.
type ProviderMetrics struct {
	EgressStopDuration  prometheus.Histogram
	EgressStopErrors    *prometheus.CounterVec
	DuplicateDeliveries prometheus.Counter
}

// NewProviderMetrics creates and registers provider metrics on the given registry.
func NewProviderMetrics(reg prometheus.Registerer) *ProviderMetrics {
	m := &ProviderMetrics{
		EgressStopDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "egress_stop_duration_seconds",
			Help:      "Duration of egress stop calls in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		EgressStopErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "egress_stop_errors_total",
			Help:      "Total number of failed egress stop calls, by reason.",
		}, []string{"reason"}),
		DuplicateDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "duplicate_webhook_deliveries_total",
			Help:      "Total number of webhook deliveries dropped as redeliveries.",
		}),
	}

	reg.MustRegister(m.EgressStopDuration, m.EgressStopErrors, m.DuplicateDeliveries)
	return m
}
