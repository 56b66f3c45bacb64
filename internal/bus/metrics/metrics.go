// Package metrics holds Prometheus metrics for the dissemination bus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all bus metrics.
type Metrics struct {
	Published   *prometheus.CounterVec
	Subscribers prometheus.Gauge
	Overflows   prometheus.Counter
}

// New creates and registers bus metrics against the given registerer. Tests
// pass a fresh registry to avoid cross-test registration clashes.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trackguard_bus_events_published_total",
			Help: "Events published on the dissemination bus, by type.",
		}, []string{"type"}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trackguard_bus_subscribers",
			Help: "Currently connected bus subscribers.",
		}),
		Overflows: factory.NewCounter(prometheus.CounterOpts{
			Name: "trackguard_bus_subscriber_overflows_total",
			Help: "Subscribers disconnected because their event queue overflowed.",
		}),
	}
}
