// Package sensor scores sensor samples for anomalies that may indicate
// tampering. Like the vision analyzer it is a pure function of the readings
// plus static thresholds, so scores replay deterministically for audit.
package sensor

import (
	"sort"

	"trackguard/internal/reading"
)

// Range is an inclusive value band.
type Range struct {
	Low  float64
	High float64
}

// Contains reports whether v falls inside the band.
func (r Range) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// Thresholds band a sensor type's values into normal, warning, and critical.
type Thresholds struct {
	Normal   Range
	Warning  Range
	Critical Range
}

// Config holds the static detection configuration.
type Config struct {
	Thresholds map[reading.SensorType]Thresholds

	// Weights score anomaly kinds by how indicative of tampering they are.
	Weights map[reading.SensorType]float64

	// SuddenChangeWeight replaces the per-type weight for critical-band
	// excursions, which look sabotage-like regardless of channel.
	SuddenChangeWeight float64

	// CoordinationWeight scores simultaneous anomalies across sensor types.
	CoordinationWeight float64

	// MinorMultiplier discounts excursions just outside the normal band.
	MinorMultiplier float64
}

// DefaultConfig returns the reviewed production thresholds.
func DefaultConfig() Config {
	return Config{
		Thresholds: map[reading.SensorType]Thresholds{
			reading.SensorVibration: {
				Normal:   Range{0, 50},
				Warning:  Range{50, 80},
				Critical: Range{80, 100},
			},
			reading.SensorTilt: {
				Normal:   Range{0, 2},
				Warning:  Range{2, 5},
				Critical: Range{5, 15},
			},
			reading.SensorPressure: {
				Normal:   Range{0.9, 1.1},
				Warning:  Range{0.7, 0.9},
				Critical: Range{0, 0.7},
			},
		},
		Weights: map[reading.SensorType]float64{
			reading.SensorVibration: 20,
			reading.SensorTilt:      30,
			reading.SensorPressure:  25,
		},
		SuddenChangeWeight: 35,
		CoordinationWeight: 40,
		MinorMultiplier:    0.5,
	}
}

// Analyzer turns sensor samples into a modality score.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer builds an analyzer with the given configuration.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Score computes the sensor modality score for a batch of readings.
// Non-operational and malformed readings are skipped with a data-quality tag;
// the call itself never fails.
func (a *Analyzer) Score(readings []reading.SensorReading) reading.ModalityScore {
	score := reading.ModalityScore{Modality: reading.ModalitySensor}

	var findings []reading.Finding
	degradedInput := false
	total := 0.0
	anomalousTypes := make(map[reading.SensorType]bool)

	for _, r := range readings {
		if !r.Operational || r.ZoneID.IsNil() || r.SensorID == "" {
			degradedInput = true
			continue
		}
		bands, ok := a.cfg.Thresholds[r.Type]
		if !ok {
			degradedInput = true
			continue
		}
		if bands.Normal.Contains(r.Value) {
			continue
		}

		anomalousTypes[r.Type] = true

		weight := a.cfg.Weights[r.Type]
		tag := string(r.Type) + "-anomaly"
		switch {
		case bands.Critical.Contains(r.Value):
			weight = a.cfg.SuddenChangeWeight
			tag = "sudden-change-" + string(r.Type)
		case bands.Warning.Contains(r.Value):
			// Per-type weight as configured.
		default:
			weight *= a.cfg.MinorMultiplier
		}

		total += weight
		findings = append(findings, reading.Finding{Tag: tag, Contribution: weight})
	}

	if len(anomalousTypes) >= 2 {
		confidence := 0.7 + 0.1*float64(len(anomalousTypes)-2)
		if confidence > 0.9 {
			confidence = 0.9
		}
		contribution := a.cfg.CoordinationWeight * confidence
		total += contribution
		findings = append(findings, reading.Finding{Tag: "coordinated-anomaly", Contribution: contribution})
	}

	if len(readings) == 0 || degradedInput {
		findings = append(findings, reading.Finding{Tag: reading.DataQualityTag, Contribution: 0})
	}

	if total > 100 {
		total = 100
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Contribution > findings[j].Contribution
	})

	score.Value = total
	score.Findings = findings
	score.Tags = make([]string, len(findings))
	for i, f := range findings {
		score.Tags[i] = f.Tag
	}
	return score
}
