package reading

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"trackguard/pkg/domain"
)

// SimulatedConfig tunes the synthetic sources.
type SimulatedConfig struct {
	// AnomalyProbability is the chance an unscripted capture contains an
	// anomaly.
	AnomalyProbability float64
	// Seed fixes the random stream for reproducible runs; 0 seeds from the
	// clock.
	Seed int64
}

// DefaultSimulatedConfig mirrors the tuning the demo environments run with.
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{AnomalyProbability: 0.3}
}

// SimulatedVisionSource fabricates vision readings. Scripted scenarios yield
// fixed detection sets; unscripted captures inject anomalies with the
// configured probability.
type SimulatedVisionSource struct {
	cfg SimulatedConfig
	now func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedVisionSource builds a synthetic vision source.
func NewSimulatedVisionSource(cfg SimulatedConfig) *SimulatedVisionSource {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedVisionSource{
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Capture fabricates a reading for the zone.
func (s *SimulatedVisionSource) Capture(_ context.Context, zoneID domain.ZoneID, scenario Scenario) (VisionReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := VisionReading{
		ZoneID:     zoneID,
		SourceID:   "sim-cctv-" + zoneID.String(),
		CapturedAt: s.now(),
	}

	switch scenario {
	case ScenarioTampering:
		r.Detections = []Detection{
			{Class: DetectionMissingFishPlate, Confidence: 0.93, BoxArea: 0.04},
			{Class: DetectionToolDetection, Confidence: 0.81, BoxArea: 0.02},
			{Class: DetectionHumanPresence, Confidence: 0.88, BoxArea: 0.11},
		}
	case ScenarioNightTheft:
		r.Detections = []Detection{
			{Class: DetectionHumanPresence, Confidence: 0.77, BoxArea: 0.09},
			{Class: DetectionVehicleNearTrack, Confidence: 0.72, BoxArea: 0.18},
		}
		r.Conditions = []ImageCondition{ConditionLowLight}
	case ScenarioSuspicious:
		r.Detections = []Detection{
			{Class: DetectionForeignObject, Confidence: 0.74, BoxArea: 0.03},
		}
	case ScenarioNormal:
		// No detections.
	default:
		if s.rng.Float64() < s.cfg.AnomalyProbability {
			r.Detections = []Detection{randomDetection(s.rng)}
		}
		if s.rng.Float64() < 0.2 {
			r.Conditions = append(r.Conditions, ConditionBlur)
		}
	}

	return r, nil
}

func randomDetection(rng *rand.Rand) Detection {
	classes := []DetectionClass{
		DetectionForeignObject,
		DetectionHumanPresence,
		DetectionToolDetection,
		DetectionVehicleNearTrack,
	}
	return Detection{
		Class:      classes[rng.Intn(len(classes))],
		Confidence: 0.6 + rng.Float64()*0.35,
		BoxArea:    0.01 + rng.Float64()*0.15,
	}
}

// SimulatedSensorSource fabricates vibration, tilt, and pressure samples.
type SimulatedSensorSource struct {
	cfg SimulatedConfig
	now func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedSensorSource builds a synthetic sensor source.
func NewSimulatedSensorSource(cfg SimulatedConfig) *SimulatedSensorSource {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedSensorSource{
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Capture fabricates the current samples for the zone's sensor set.
func (s *SimulatedSensorSource) Capture(_ context.Context, zoneID domain.ZoneID, scenario Scenario) ([]SensorReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	base := func(sensor string, typ SensorType, value, baseline float64) SensorReading {
		return SensorReading{
			ZoneID:      zoneID,
			SensorID:    sensor + "-" + zoneID.String(),
			Type:        typ,
			Value:       value,
			Baseline:    baseline,
			Operational: true,
			CapturedAt:  now,
		}
	}

	switch scenario {
	case ScenarioTampering, ScenarioNightTheft:
		// Coordinated anomalies across sensor types.
		return []SensorReading{
			base("vib", SensorVibration, 88+s.rng.Float64()*10, 20),
			base("tilt", SensorTilt, 7+s.rng.Float64()*3, 0.5),
			base("press", SensorPressure, 0.55+s.rng.Float64()*0.1, 1.0),
		}, nil
	case ScenarioSuspicious:
		return []SensorReading{
			base("vib", SensorVibration, 62+s.rng.Float64()*10, 20),
			base("tilt", SensorTilt, 1+s.rng.Float64(), 0.5),
			base("press", SensorPressure, 1.0+s.rng.Float64()*0.05, 1.0),
		}, nil
	case ScenarioNormal:
		return []SensorReading{
			base("vib", SensorVibration, 15+s.rng.Float64()*20, 20),
			base("tilt", SensorTilt, s.rng.Float64(), 0.5),
			base("press", SensorPressure, 0.95+s.rng.Float64()*0.1, 1.0),
		}, nil
	default:
		readings := []SensorReading{
			base("vib", SensorVibration, 15+s.rng.Float64()*20, 20),
			base("tilt", SensorTilt, s.rng.Float64(), 0.5),
			base("press", SensorPressure, 0.95+s.rng.Float64()*0.1, 1.0),
		}
		if s.rng.Float64() < s.cfg.AnomalyProbability {
			i := s.rng.Intn(len(readings))
			switch readings[i].Type {
			case SensorVibration:
				readings[i].Value = 80 + s.rng.Float64()*20
			case SensorTilt:
				readings[i].Value = 5 + s.rng.Float64()*5
			case SensorPressure:
				readings[i].Value = 0.4 + s.rng.Float64()*0.2
			}
		}
		return readings, nil
	}
}
