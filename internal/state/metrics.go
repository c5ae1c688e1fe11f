package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts store activity.
type Metrics struct {
	Writes *prometheus.CounterVec // by op: set, delete_key, delete_scope
	Scopes prometheus.Gauge
}

// NewMetrics creates store metrics registered with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Writes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appstate_writes_total",
			Help: "Committed store mutations",
		}, []string{"op"}),
		Scopes: f.NewGauge(prometheus.GaugeOpts{
			Name: "appstate_scopes",
			Help: "Scopes currently holding a tree",
		}),
	}
}
