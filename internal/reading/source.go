package reading

import (
	"context"

	"trackguard/pkg/domain"
)

// Scenario hints let operators and tests steer simulated sources. Real
// hardware adapters ignore the hint.
type Scenario string

const (
	ScenarioNone       Scenario = ""
	ScenarioNormal     Scenario = "normal"
	ScenarioSuspicious Scenario = "suspicious"
	ScenarioTampering  Scenario = "tampering"
	ScenarioNightTheft Scenario = "night_theft"
)

// VisionSource produces a vision reading for a zone on demand. One
// implementation per data-source kind (simulated, CCTV gateway, drone feed),
// selected by configuration at startup.
type VisionSource interface {
	Capture(ctx context.Context, zoneID domain.ZoneID, scenario Scenario) (VisionReading, error)
}

// SensorSource produces the current sensor samples for a zone on demand.
type SensorSource interface {
	Capture(ctx context.Context, zoneID domain.ZoneID, scenario Scenario) ([]SensorReading, error)
}
