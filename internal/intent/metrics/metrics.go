// Package metrics exposes Prometheus instrumentation for the fusion engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds fusion instrumentation.
type Metrics struct {
	Classifications *prometheus.CounterVec
	Degraded        *prometheus.CounterVec
	Coalesced       prometheus.Counter
	Rejected        prometheus.Counter
	RiskScore       prometheus.Histogram
	Duration        prometheus.Histogram
}

// New registers fusion metrics against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trackguard_classifications_total",
			Help: "Completed classifications, by label.",
		}, []string{"label"}),
		Degraded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trackguard_degraded_modalities_total",
			Help: "Modality analyses replaced by the fallback score, by modality.",
		}, []string{"modality"}),
		Coalesced: factory.NewCounter(prometheus.CounterOpts{
			Name: "trackguard_classify_coalesced_total",
			Help: "Classify calls that shared an in-flight fusion for their zone.",
		}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "trackguard_classify_rejected_busy_total",
			Help: "No-wait classify calls rejected because a fusion was in flight.",
		}),
		RiskScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trackguard_risk_score",
			Help:    "Distribution of fused risk scores.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trackguard_classify_duration_seconds",
			Help:    "End-to-end classify latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
