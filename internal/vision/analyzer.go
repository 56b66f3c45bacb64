// Package vision scores vision readings for tampering evidence. The analyzer
// is a pure function of the reading plus static weight configuration, so any
// recorded score can be replayed exactly for audit review.
package vision

import (
	"sort"
	"strings"

	"trackguard/internal/reading"
)

// Config holds the static model configuration.
type Config struct {
	// Weights score each detection class by how indicative of tampering it
	// is. Contribution = weight * detection confidence.
	Weights map[reading.DetectionClass]float64

	// ConfidenceFloor drops detections the model itself is unsure about.
	ConfidenceFloor float64

	// VisibilityPenalty scales the total when capture conditions degrade
	// detection quality.
	VisibilityPenalty float64

	// DefaultWeight applies to detection classes missing from Weights.
	DefaultWeight float64
}

// DefaultConfig returns the reviewed production weighting.
func DefaultConfig() Config {
	return Config{
		Weights: map[reading.DetectionClass]float64{
			reading.DetectionMissingFishPlate:  35,
			reading.DetectionForeignObject:     25,
			reading.DetectionTrackDisplacement: 40,
			reading.DetectionHumanPresence:     20,
			reading.DetectionToolDetection:     30,
			reading.DetectionVehicleNearTrack:  15,
		},
		ConfidenceFloor:   0.6,
		VisibilityPenalty: 0.85,
		DefaultWeight:     10,
	}
}

// Analyzer turns vision readings into modality scores.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer builds an analyzer with the given configuration.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Score computes the vision modality score for one reading. Malformed
// detections are skipped and surfaced via the data-quality tag rather than
// failing the call.
func (a *Analyzer) Score(r reading.VisionReading) reading.ModalityScore {
	score := reading.ModalityScore{Modality: reading.ModalityVision}

	if r.ZoneID.IsNil() {
		score.Tags = []string{reading.DataQualityTag}
		score.Findings = []reading.Finding{{Tag: reading.DataQualityTag, Contribution: 0}}
		return score
	}

	var findings []reading.Finding
	degradedInput := false
	total := 0.0

	for _, d := range r.Detections {
		if d.Class == "" || d.Confidence < 0 || d.Confidence > 1 {
			degradedInput = true
			continue
		}
		if d.Confidence < a.cfg.ConfidenceFloor {
			continue
		}

		weight, ok := a.cfg.Weights[d.Class]
		if !ok {
			weight = a.cfg.DefaultWeight
		}
		contribution := weight * d.Confidence
		total += contribution
		findings = append(findings, reading.Finding{
			Tag:          tagFor(d.Class),
			Contribution: contribution,
		})
	}

	if poorVisibility(r.Conditions) {
		total *= a.cfg.VisibilityPenalty
		findings = append(findings, reading.Finding{Tag: "poor-visibility", Contribution: 0})
	}
	if degradedInput {
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

func poorVisibility(conditions []reading.ImageCondition) bool {
	for _, c := range conditions {
		switch c {
		case reading.ConditionLowLight, reading.ConditionFog, reading.ConditionBlur, reading.ConditionPartialOcclusion:
			return true
		}
	}
	return false
}

func tagFor(class reading.DetectionClass) string {
	return strings.ReplaceAll(string(class), "_", "-")
}
