// Package metrics exposes Prometheus instrumentation for the alert lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds alert lifecycle counters.
type Metrics struct {
	Opened      *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Suppressed  *prometheus.CounterVec
	Active      prometheus.Gauge
}

// New registers alert metrics against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Opened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trackguard_alerts_opened_total",
			Help: "Alerts opened, by severity.",
		}, []string{"severity"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trackguard_alert_transitions_total",
			Help: "Alert lifecycle transitions, by action.",
		}, []string{"action"}),
		Suppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trackguard_alerts_suppressed_total",
			Help: "Alert creations suppressed, by reason (dedup, cooldown, hourly_cap).",
		}, []string{"reason"}),
		Active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trackguard_alerts_active",
			Help: "Alerts currently in the active state.",
		}),
	}
}
