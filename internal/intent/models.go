// Package intent implements the fusion engine: it joins vision and sensor
// modality scores with temporal context into a single intent classification
// per zone, records it on the audit log, feeds it to the alert lifecycle and
// disseminates the result. Classifications are immutable facts; the engine
// never rewrites one after creation.
package intent

import (
	"time"

	"trackguard/internal/reading"
	"trackguard/pkg/domain"
)

// Label is the fused intent verdict for a zone at a point in time.
type Label string

const (
	LabelSafe               Label = "SAFE"
	LabelSuspicious         Label = "SUSPICIOUS"
	LabelConfirmedTampering Label = "CONFIRMED_TAMPERING"
)

var labelRank = map[Label]int{
	LabelSafe:               0,
	LabelSuspicious:         1,
	LabelConfirmedTampering: 2,
}

// Rank orders labels by severity.
func (l Label) Rank() int { return labelRank[l] }

// Classification is the immutable output of one completed fusion.
type Classification struct {
	ID        domain.ClassificationID `json:"classification_id"`
	ZoneID    domain.ZoneID           `json:"zone_id"`
	Timestamp time.Time               `json:"timestamp"`

	Label      Label   `json:"label"`
	RiskScore  float64 `json:"risk_score"` // 0..100
	Confidence float64 `json:"confidence"` // 0..1

	VisionScore   float64 `json:"vision_score"`
	SensorScore   float64 `json:"sensor_score"`
	TemporalScore float64 `json:"temporal_score"`

	// Degraded marks classifications computed with one or more modalities
	// substituted by the fallback score.
	Degraded           bool     `json:"degraded"`
	DegradedModalities []string `json:"degraded_modalities,omitempty"`

	PrimaryReasons     []string `json:"primary_reasons"`
	RecommendedActions []string `json:"recommended_actions"`

	ProcessingMillis float64 `json:"processing_time_ms"`
}

// ClassifyRequest asks for one fusion of a zone's current readings.
type ClassifyRequest struct {
	ZoneID   domain.ZoneID
	Scenario reading.Scenario
	// SkipVision and SkipSensor disable a modality for this fusion. A
	// disabled modality takes the fallback path and marks the result
	// degraded; it never reads as evidence of safety.
	SkipVision bool
	SkipSensor bool
	// NoWait rejects the call with Busy instead of coalescing onto an
	// in-flight fusion for the same zone.
	NoWait bool
}

// modalityOutcome is the result of running one modality under its deadline.
type modalityOutcome struct {
	modality reading.Modality
	score    reading.ModalityScore
	degraded bool
}
