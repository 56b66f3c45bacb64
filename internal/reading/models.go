// Package reading defines the observation schema shared by source adapters
// and analyzers: raw vision/sensor readings on the input side and modality
// scores on the output side. Analyzers are pure functions over these types so
// every score is replayable for audit.
package reading

import (
	"time"

	"trackguard/pkg/domain"
)

// Modality names one independent observation channel.
type Modality string

const (
	ModalityVision Modality = "VISION"
	ModalitySensor Modality = "SENSOR"
)

// Finding is one explainable contribution to a modality score.
type Finding struct {
	Tag          string  `json:"tag"`
	Contribution float64 `json:"contribution"`
}

// ModalityScore is the immutable output of one analysis call. Tags and
// Findings are ordered by descending contribution so downstream ranking is
// deterministic.
type ModalityScore struct {
	Modality Modality  `json:"modality"`
	Value    float64   `json:"value"` // 0..100
	Tags     []string  `json:"tags"`
	Findings []Finding `json:"findings,omitempty"`
}

// DataQualityTag marks a score degraded by malformed or partial input
// rather than by anomaly evidence.
const DataQualityTag = "data-quality"

// DetectionClass labels what a vision model saw.
type DetectionClass string

const (
	DetectionMissingFishPlate  DetectionClass = "missing_fish_plate"
	DetectionForeignObject     DetectionClass = "foreign_object"
	DetectionTrackDisplacement DetectionClass = "track_displacement"
	DetectionHumanPresence     DetectionClass = "human_presence"
	DetectionToolDetection     DetectionClass = "tool_detection"
	DetectionVehicleNearTrack  DetectionClass = "vehicle_near_track"
)

// Detection is one object the vision model located in a frame.
type Detection struct {
	Class      DetectionClass `json:"class"`
	Confidence float64        `json:"confidence"` // 0..1
	BoxArea    float64        `json:"box_area"`   // fraction of frame, 0..1
}

// ImageCondition describes capture conditions that affect detection quality.
type ImageCondition string

const (
	ConditionLowLight         ImageCondition = "low_light"
	ConditionFog              ImageCondition = "fog"
	ConditionBlur             ImageCondition = "blur"
	ConditionPartialOcclusion ImageCondition = "partial_occlusion"
)

// VisionReading is one frame's worth of detections for a zone.
type VisionReading struct {
	ZoneID     domain.ZoneID    `json:"zone_id"`
	SourceID   string           `json:"source_id"`
	CapturedAt time.Time        `json:"captured_at"`
	Detections []Detection      `json:"detections"`
	Conditions []ImageCondition `json:"conditions,omitempty"`
}

// SensorType names a physical sensor channel.
type SensorType string

const (
	SensorVibration SensorType = "vibration"
	SensorTilt      SensorType = "tilt"
	SensorPressure  SensorType = "pressure"
)

// SensorReading is one sample from one physical sensor.
type SensorReading struct {
	ZoneID      domain.ZoneID `json:"zone_id"`
	SensorID    string        `json:"sensor_id"`
	Type        SensorType    `json:"type"`
	Value       float64       `json:"value"`
	Baseline    float64       `json:"baseline"`
	Operational bool          `json:"operational"`
	CapturedAt  time.Time     `json:"captured_at"`
}
