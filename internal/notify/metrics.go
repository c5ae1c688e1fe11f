package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts notifier activity.
type Metrics struct {
	Notifications prometheus.Counter
	Deliveries    prometheus.Counter
	Suppressed    prometheus.Counter
	Panics        prometheus.Counter
	Subscriptions prometheus.Gauge
}

// NewMetrics creates notifier metrics registered with reg.
// A nil reg creates unregistered collectors, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Notifications: f.NewCounter(prometheus.CounterOpts{
			Name: "appstate_notifications_total",
			Help: "Scope notifications processed",
		}),
		Deliveries: f.NewCounter(prometheus.CounterOpts{
			Name: "appstate_deliveries_total",
			Help: "Non-empty deltas delivered to subscribers",
		}),
		Suppressed: f.NewCounter(prometheus.CounterOpts{
			Name: "appstate_suppressed_deltas_total",
			Help: "Subscriber visits that produced an empty delta",
		}),
		Panics: f.NewCounter(prometheus.CounterOpts{
			Name: "appstate_callback_panics_total",
			Help: "Subscriber callbacks that panicked and were recovered",
		}),
		Subscriptions: f.NewGauge(prometheus.GaugeOpts{
			Name: "appstate_subscriptions",
			Help: "Active subscriptions across all scopes",
		}),
	}
}
