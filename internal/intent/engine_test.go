package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackguard/internal/reading"
)

func outcome(modality reading.Modality, value float64, findings ...reading.Finding) modalityOutcome {
	tags := make([]string, 0, len(findings))
	for _, f := range findings {
		tags = append(tags, f.Tag)
	}
	return modalityOutcome{
		modality: modality,
		score: reading.ModalityScore{
			Modality: modality,
			Value:    value,
			Tags:     tags,
			Findings: findings,
		},
	}
}

func degradedOutcome(modality reading.Modality, value float64) modalityOutcome {
	out := outcome(modality, value, reading.Finding{Tag: "degraded", Contribution: value})
	out.degraded = true
	return out
}

func TestFuseWeightedScore(t *testing.T) {
	// With weights 0.6/0.4 and temporal weight zero, vision 80 and sensor 20
	// fuse to exactly 56, inside the suspicious band.
	cfg := DefaultConfig()
	cfg.Weights = Weights{Vision: 0.6, Sensor: 0.4, Temporal: 0}

	f := fuse(cfg, outcome(reading.ModalityVision, 80), outcome(reading.ModalitySensor, 20), 0)

	assert.InDelta(t, 56.0, f.risk, 0.001)
	assert.Equal(t, LabelSuspicious, f.label)
}

func TestFuseLabelThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{Vision: 1, Sensor: 0, Temporal: 0}

	cases := []struct {
		vision float64
		want   Label
	}{
		{0, LabelSafe},
		{39.9, LabelSafe},
		{40, LabelSuspicious}, // a tie takes the higher-severity label
		{74.9, LabelSuspicious},
		{75, LabelConfirmedTampering},
		{100, LabelConfirmedTampering},
	}
	for _, tc := range cases {
		f := fuse(cfg, outcome(reading.ModalityVision, tc.vision), outcome(reading.ModalitySensor, 0), 0)
		assert.Equal(t, tc.want, f.label, "vision score %.1f", tc.vision)
	}
}

func TestFuseLabelMonotonicOverRisk(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{Vision: 1, Sensor: 0, Temporal: 0}

	prev := LabelSafe
	for v := 0.0; v <= 100; v += 0.5 {
		f := fuse(cfg, outcome(reading.ModalityVision, v), outcome(reading.ModalitySensor, 0), 0)
		require.GreaterOrEqual(t, f.label.Rank(), prev.Rank(), "label regressed at vision score %.1f", v)
		prev = f.label
	}
}

func TestFuseConfidence(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("same band reads as agreement", func(t *testing.T) {
		f := fuse(cfg, outcome(reading.ModalityVision, 80), outcome(reading.ModalitySensor, 90), 0)
		assert.InDelta(t, 0.9, f.confidence, 0.001)
	})

	t.Run("adjacent bands reduce confidence", func(t *testing.T) {
		f := fuse(cfg, outcome(reading.ModalityVision, 80), outcome(reading.ModalitySensor, 50), 0)
		assert.InDelta(t, 0.7, f.confidence, 0.001)
	})

	t.Run("opposite bands read as conflict", func(t *testing.T) {
		f := fuse(cfg, outcome(reading.ModalityVision, 90), outcome(reading.ModalitySensor, 5), 0)
		assert.InDelta(t, 0.5, f.confidence, 0.001)
	})

	t.Run("each degraded modality costs a penalty", func(t *testing.T) {
		f := fuse(cfg, degradedOutcome(reading.ModalityVision, 60), outcome(reading.ModalitySensor, 60), 0)
		assert.InDelta(t, 0.7, f.confidence, 0.001)

		f = fuse(cfg, degradedOutcome(reading.ModalityVision, 60), degradedOutcome(reading.ModalitySensor, 60), 0)
		assert.InDelta(t, 0.5, f.confidence, 0.001)
	})

	t.Run("confidence never drops below the floor", func(t *testing.T) {
		f := fuse(cfg, degradedOutcome(reading.ModalityVision, 90), degradedOutcome(reading.ModalitySensor, 5), 0)
		assert.InDelta(t, 0.1, f.confidence, 0.001)
	})
}

func TestFusePrimaryReasons(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("merged across modalities by contribution", func(t *testing.T) {
		vision := outcome(reading.ModalityVision, 70,
			reading.Finding{Tag: "missing-fish-plate", Contribution: 32.5},
			reading.Finding{Tag: "human-presence", Contribution: 15},
		)
		sensor := outcome(reading.ModalitySensor, 80,
			reading.Finding{Tag: "sudden-change-vibration", Contribution: 35},
			reading.Finding{Tag: "coordinated-anomaly", Contribution: 28},
		)

		f := fuse(cfg, vision, sensor, 0)
		assert.Equal(t, []string{
			"sudden-change-vibration",
			"missing-fish-plate",
			"coordinated-anomaly",
			"human-presence",
		}, f.reasons)
	})

	t.Run("capped at the configured maximum", func(t *testing.T) {
		var findings []reading.Finding
		for _, tag := range []string{"a", "b", "c", "d", "e", "f", "g"} {
			findings = append(findings, reading.Finding{Tag: tag, Contribution: 10})
		}
		f := fuse(cfg, outcome(reading.ModalityVision, 70, findings...), outcome(reading.ModalitySensor, 0), 0)
		assert.Len(t, f.reasons, cfg.MaxReasons)
	})

	t.Run("safe with no findings still explains itself", func(t *testing.T) {
		f := fuse(cfg, outcome(reading.ModalityVision, 0), outcome(reading.ModalitySensor, 0), 0)
		assert.Equal(t, []string{"no-anomalies-detected"}, f.reasons)
	})
}

func TestFuseRecommendedActions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{Vision: 1, Sensor: 0, Temporal: 0}

	safe := fuse(cfg, outcome(reading.ModalityVision, 10), outcome(reading.ModalitySensor, 0), 0)
	assert.Contains(t, safe.actions, "Continue normal monitoring")

	suspicious := fuse(cfg, outcome(reading.ModalityVision, 50), outcome(reading.ModalitySensor, 0), 0)
	assert.Contains(t, suspicious.actions, "Dispatch patrol to verify zone condition")

	confirmed := fuse(cfg, outcome(reading.ModalityVision, 80), outcome(reading.ModalitySensor, 0), 0)
	assert.Contains(t, confirmed.actions, "Reduce train speed in zone to 20 km/h")

	critical := fuse(cfg, outcome(reading.ModalityVision, 95), outcome(reading.ModalitySensor, 0), 0)
	assert.Equal(t, "Stop all trains in zone immediately", critical.actions[0])
}

func TestHistoryTemporalScore(t *testing.T) {
	cfg := DefaultTemporalConfig()
	h := newHistory(cfg, 40)
	noon := mustTime(t, "2026-03-14T12:00:00Z")

	t.Run("quiet daytime zone scores zero", func(t *testing.T) {
		assert.Zero(t, h.temporalScore("ZONE-001", noon))
	})

	t.Run("night hours raise the baseline", func(t *testing.T) {
		night := mustTime(t, "2026-03-14T23:30:00Z")
		assert.Equal(t, cfg.NightScore, h.temporalScore("ZONE-001", night))

		early := mustTime(t, "2026-03-14T05:30:00Z")
		assert.Equal(t, cfg.EarlyScore, h.temporalScore("ZONE-001", early))
	})

	t.Run("repeated anomalies inside the window dominate", func(t *testing.T) {
		h.note("ZONE-002", noon, 55)
		h.note("ZONE-002", noon.Add(time.Minute), 62)
		assert.Equal(t, cfg.RepeatScore, h.temporalScore("ZONE-002", noon.Add(2*time.Minute)))
	})

	t.Run("records age out of the window", func(t *testing.T) {
		h.note("ZONE-003", noon, 55)
		h.note("ZONE-003", noon.Add(time.Minute), 62)
		assert.Zero(t, h.temporalScore("ZONE-003", noon.Add(cfg.Window+2*time.Minute)))
	})

	t.Run("below-threshold classifications do not count", func(t *testing.T) {
		h.note("ZONE-004", noon, 10)
		h.note("ZONE-004", noon.Add(time.Minute), 20)
		assert.Zero(t, h.temporalScore("ZONE-004", noon.Add(2*time.Minute)))
	})
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
