package intent

import (
	"math"
	"sort"
	"time"

	"trackguard/internal/reading"
)

// Weights splits the fused risk score between modalities and temporal
// context. The three weights must sum to 1.
type Weights struct {
	Vision   float64
	Sensor   float64
	Temporal float64
}

// Thresholds are the label cut points on the fused 0..100 risk score. A score
// equal to a threshold takes the higher-severity label.
type Thresholds struct {
	Suspicious float64
	Tampering  float64
}

// Config tunes the fusion engine.
type Config struct {
	Weights    Weights
	Thresholds Thresholds

	// FallbackScore substitutes a modality that failed or timed out. Biased
	// upward: a blind modality must never read as evidence of safety.
	FallbackScore float64

	// MaxReasons caps the merged primary-reasons list.
	MaxReasons int

	// ModalityTimeout bounds each modality capture+analysis call.
	ModalityTimeout time.Duration

	Temporal TemporalConfig
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Weights:         Weights{Vision: 0.45, Sensor: 0.45, Temporal: 0.10},
		Thresholds:      Thresholds{Suspicious: 40, Tampering: 75},
		FallbackScore:   60,
		MaxReasons:      5,
		ModalityTimeout: 2 * time.Second,
		Temporal:        DefaultTemporalConfig(),
	}
}

// fused is the pure output of one fusion.
type fused struct {
	risk       float64
	label      Label
	confidence float64
	reasons    []string
	actions    []string
}

// fuse combines the modality outcomes and the temporal score. Pure function
// of its inputs so every classification is replayable from its audit snapshot.
func fuse(cfg Config, visionOut, sensorOut modalityOutcome, temporal float64) fused {
	risk := cfg.Weights.Vision*visionOut.score.Value +
		cfg.Weights.Sensor*sensorOut.score.Value +
		cfg.Weights.Temporal*temporal
	risk = clamp(risk, 0, 100)
	risk = math.Round(risk*100) / 100

	label := labelFor(cfg.Thresholds, risk)
	return fused{
		risk:       risk,
		label:      label,
		confidence: confidenceFor(cfg.Thresholds, visionOut, sensorOut),
		reasons:    primaryReasons(cfg.MaxReasons, label, visionOut, sensorOut),
		actions:    recommendedActions(label, risk),
	}
}

func labelFor(t Thresholds, risk float64) Label {
	switch {
	case risk >= t.Tampering:
		return LabelConfirmedTampering
	case risk >= t.Suspicious:
		return LabelSuspicious
	default:
		return LabelSafe
	}
}

// confidenceFor derives confidence from band agreement between the two
// modality scores: both in the same threshold band reads as strong agreement,
// adjacent bands as partial, opposite bands as conflict. Each degraded
// modality costs a flat penalty.
func confidenceFor(t Thresholds, visionOut, sensorOut modalityOutcome) float64 {
	gap := band(t, visionOut.score.Value) - band(t, sensorOut.score.Value)
	if gap < 0 {
		gap = -gap
	}

	var confidence float64
	switch gap {
	case 0:
		confidence = 0.9
	case 1:
		confidence = 0.7
	default:
		confidence = 0.5
	}

	for _, out := range []modalityOutcome{visionOut, sensorOut} {
		if out.degraded {
			confidence -= 0.2
		}
	}
	if confidence < 0.1 {
		confidence = 0.1
	}
	return math.Round(confidence*100) / 100
}

func band(t Thresholds, score float64) int {
	switch {
	case score >= t.Tampering:
		return 2
	case score >= t.Suspicious:
		return 1
	default:
		return 0
	}
}

// primaryReasons merges the findings of both modalities, highest contribution
// first. Equal contributions order vision before sensor, then by tag, so the
// list is deterministic.
func primaryReasons(max int, label Label, visionOut, sensorOut modalityOutcome) []string {
	if max <= 0 {
		max = 5
	}

	type ranked struct {
		reading.Finding
		modality reading.Modality
	}
	var merged []ranked
	for _, f := range visionOut.score.Findings {
		merged = append(merged, ranked{Finding: f, modality: reading.ModalityVision})
	}
	for _, f := range sensorOut.score.Findings {
		merged = append(merged, ranked{Finding: f, modality: reading.ModalitySensor})
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Contribution != merged[j].Contribution {
			return merged[i].Contribution > merged[j].Contribution
		}
		if merged[i].modality != merged[j].modality {
			return merged[i].modality == reading.ModalityVision
		}
		return merged[i].Tag < merged[j].Tag
	})

	reasons := make([]string, 0, max)
	seen := make(map[string]bool)
	for _, f := range merged {
		if seen[f.Tag] {
			continue
		}
		seen[f.Tag] = true
		reasons = append(reasons, f.Tag)
		if len(reasons) == max {
			break
		}
	}
	if len(reasons) == 0 && label == LabelSafe {
		reasons = append(reasons, "no-anomalies-detected")
	}
	return reasons
}

// recommendedActions is the fixed operator playbook keyed by label, with a
// stricter variant once the risk score reaches the critical band.
func recommendedActions(label Label, risk float64) []string {
	switch label {
	case LabelSuspicious:
		return []string{
			"Dispatch patrol to verify zone condition",
			"Review CCTV footage for the past hour",
			"Cross-check readings with adjacent zone sensors",
			"Re-analyze zone in 5 minutes",
		}
	case LabelConfirmedTampering:
		if risk >= 85 {
			return []string{
				"Stop all trains in zone immediately",
				"Alert zone supervisor",
				"Notify train control to halt approach",
				"Dispatch emergency response team",
				"Activate backup communication channels",
			}
		}
		return []string{
			"Alert zone supervisor",
			"Notify train control to halt approach",
			"Reduce train speed in zone to 20 km/h",
			"Dispatch maintenance crew for inspection",
		}
	default:
		return []string{
			"Continue normal monitoring",
			"No immediate action required",
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
