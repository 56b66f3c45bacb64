package intent_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trackguard/internal/alert"
	alertmem "trackguard/internal/alert/store/memory"
	"trackguard/internal/audit"
	auditmem "trackguard/internal/audit/store/memory"
	"trackguard/internal/bus"
	"trackguard/internal/intent"
	"trackguard/internal/reading"
	"trackguard/pkg/domain"
	dErrors "trackguard/pkg/domain-errors"
)

// capturingBus records published events for assertions.
type capturingBus struct {
	mu     sync.Mutex
	events []bus.Event
}

func (c *capturingBus) Publish(ev bus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *capturingBus) byType(t bus.EventType) []bus.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []bus.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// stubVisionSource returns an empty reading, optionally delayed or blocked
// until the context expires.
type stubVisionSource struct {
	delay     time.Duration
	block     bool
	gate      chan struct{}
	started   chan struct{}
	startOnce sync.Once
}

func (s *stubVisionSource) Capture(ctx context.Context, _ domain.ZoneID, _ reading.Scenario) (reading.VisionReading, error) {
	if s.started != nil {
		s.startOnce.Do(func() { close(s.started) })
	}
	if s.block {
		<-ctx.Done()
		return reading.VisionReading{}, ctx.Err()
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return reading.VisionReading{}, ctx.Err()
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return reading.VisionReading{}, ctx.Err()
		}
	}
	return reading.VisionReading{}, nil
}

type stubSensorSource struct{}

func (stubSensorSource) Capture(context.Context, domain.ZoneID, reading.Scenario) ([]reading.SensorReading, error) {
	return nil, nil
}

// fixedVision / fixedSensor score every reading with a constant result.
type fixedVision struct{ score reading.ModalityScore }

func (f fixedVision) Score(reading.VisionReading) reading.ModalityScore { return f.score }

type fixedSensor struct{ score reading.ModalityScore }

func (f fixedSensor) Score([]reading.SensorReading) reading.ModalityScore { return f.score }

func modalityScore(m reading.Modality, value float64, tags ...string) reading.ModalityScore {
	findings := make([]reading.Finding, 0, len(tags))
	for i, tag := range tags {
		findings = append(findings, reading.Finding{Tag: tag, Contribution: value - float64(i)})
	}
	return reading.ModalityScore{Modality: m, Value: value, Tags: tags, Findings: findings}
}

type IntentServiceSuite struct {
	suite.Suite
	auditor    *audit.Service
	alertStore *alertmem.InMemoryStore
	alerts     *alert.Service
	bus        *capturingBus
	now        time.Time
}

func TestIntentServiceSuite(t *testing.T) {
	suite.Run(t, new(IntentServiceSuite))
}

func (s *IntentServiceSuite) SetupTest() {
	s.bus = &capturingBus{}
	s.alertStore = alertmem.NewInMemoryStore()
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) // daytime: temporal baseline 0

	var err error
	s.auditor, err = audit.NewService(context.Background(), auditmem.NewInMemoryStore(), slog.Default())
	s.Require().NoError(err)

	s.alerts = alert.NewService(alert.DefaultConfig(), s.alertStore, s.auditor, s.bus, slog.Default(), nil).
		WithClock(func() time.Time { return s.now })
}

func (s *IntentServiceSuite) newService(cfg intent.Config, visionSrc reading.VisionSource, visionScore, sensorScore reading.ModalityScore) *intent.Service {
	return intent.NewService(
		cfg,
		visionSrc,
		stubSensorSource{},
		fixedVision{score: visionScore},
		fixedSensor{score: sensorScore},
		s.auditor,
		s.alerts,
		s.bus,
		slog.Default(),
		nil,
	).WithClock(func() time.Time { return s.now })
}

func (s *IntentServiceSuite) TestConfirmedTamperingPipeline() {
	svc := s.newService(
		intent.DefaultConfig(),
		&stubVisionSource{},
		modalityScore(reading.ModalityVision, 95, "missing-fish-plate", "tool-detection"),
		modalityScore(reading.ModalitySensor, 100, "sudden-change-vibration", "coordinated-anomaly"),
	)

	cls, err := svc.Classify(context.Background(), intent.ClassifyRequest{ZoneID: "ZONE-001"})
	s.Require().NoError(err)

	s.Equal(intent.LabelConfirmedTampering, cls.Label)
	s.InDelta(87.75, cls.RiskScore, 0.001) // 0.45*95 + 0.45*100
	s.False(cls.Degraded)
	s.Equal("sudden-change-vibration", cls.PrimaryReasons[0])
	s.Equal("Stop all trains in zone immediately", cls.RecommendedActions[0])

	s.Run("classification and its alert share one audit trail", func() {
		trail, err := s.auditor.Trace(context.Background(), cls.ID)
		s.Require().NoError(err)
		s.Require().Len(trail, 2)
		s.Equal(audit.SubjectClassification, trail[0].SubjectType)
		s.Equal(audit.SubjectAlertTransition, trail[1].SubjectType)
	})

	s.Run("an alert opened at critical severity", func() {
		active, err := s.alertStore.Active(context.Background())
		s.Require().NoError(err)
		s.Require().Len(active, 1)
		s.Equal(alert.SeverityCritical, active[0].Severity)
		s.Equal(cls.ID, active[0].ClassificationID)
	})

	s.Run("result and alert were disseminated", func() {
		s.Len(s.bus.byType(bus.TypeAnalysisUpdate), 1)
		s.Len(s.bus.byType(bus.TypeAlertNew), 1)
	})
}

func (s *IntentServiceSuite) TestVisionTimeoutDegradesButNeverSafe() {
	cfg := intent.DefaultConfig()
	cfg.ModalityTimeout = 20 * time.Millisecond

	svc := s.newService(
		cfg,
		&stubVisionSource{block: true},
		modalityScore(reading.ModalityVision, 0), // never reached
		modalityScore(reading.ModalitySensor, 95, "sudden-change-vibration"),
	)

	cls, err := svc.Classify(context.Background(), intent.ClassifyRequest{ZoneID: "ZONE-001"})
	s.Require().NoError(err)

	s.True(cls.Degraded)
	s.Equal([]string{string(reading.ModalityVision)}, cls.DegradedModalities)
	s.InDelta(60, cls.VisionScore, 0.001, "fallback score replaces the blind modality")
	s.InDelta(69.75, cls.RiskScore, 0.001) // 0.45*60 + 0.45*95
	s.Equal(intent.LabelSuspicious, cls.Label, "a blind modality must never read as SAFE")
	s.InDelta(0.5, cls.Confidence, 0.001, "degraded modality reduces confidence")
	s.Contains(cls.PrimaryReasons, "vision-degraded")
}

func (s *IntentServiceSuite) TestDisabledModalityTakesFallbackPath() {
	svc := s.newService(
		intent.DefaultConfig(),
		&stubVisionSource{},
		modalityScore(reading.ModalityVision, 0), // never reached
		modalityScore(reading.ModalitySensor, 80, "sudden-change-vibration"),
	)

	cls, err := svc.Classify(context.Background(), intent.ClassifyRequest{
		ZoneID:     "ZONE-001",
		SkipVision: true,
	})
	s.Require().NoError(err)

	s.True(cls.Degraded)
	s.Equal([]string{string(reading.ModalityVision)}, cls.DegradedModalities)
	s.InDelta(60, cls.VisionScore, 0.001, "a switched-off modality takes the fallback score")
	s.InDelta(63, cls.RiskScore, 0.001) // 0.45*60 + 0.45*80
	s.Equal(intent.LabelSuspicious, cls.Label, "an unexamined channel must never read as SAFE")
	s.Contains(cls.PrimaryReasons, "vision-degraded")
}

func (s *IntentServiceSuite) TestConcurrentClassifyCoalesces() {
	svc := s.newService(
		intent.DefaultConfig(),
		&stubVisionSource{delay: 50 * time.Millisecond},
		modalityScore(reading.ModalityVision, 10),
		modalityScore(reading.ModalitySensor, 10),
	)

	const callers = 8
	results := make([]*intent.Classification, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cls, err := svc.Classify(context.Background(), intent.ClassifyRequest{ZoneID: "ZONE-001"})
			s.NoError(err)
			results[i] = cls
		}(i)
	}
	wg.Wait()

	s.Require().NotNil(results[0])
	for _, cls := range results[1:] {
		s.Require().NotNil(cls)
		s.Equal(results[0].ID, cls.ID, "concurrent callers share one fusion")
	}

	entries, err := s.auditor.Recent(context.Background(), 100)
	s.Require().NoError(err)
	classifications := 0
	for _, e := range entries {
		if e.SubjectType == audit.SubjectClassification {
			classifications++
		}
	}
	s.Equal(1, classifications, "one fusion, one audit entry")
}

func (s *IntentServiceSuite) TestNoWaitRejectsBusyZone() {
	gate := make(chan struct{})
	started := make(chan struct{})
	svc := s.newService(
		intent.DefaultConfig(),
		&stubVisionSource{gate: gate, started: started},
		modalityScore(reading.ModalityVision, 10),
		modalityScore(reading.ModalitySensor, 10),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Classify(context.Background(), intent.ClassifyRequest{ZoneID: "ZONE-001"})
		s.NoError(err)
	}()

	<-started
	_, err := svc.Classify(context.Background(), intent.ClassifyRequest{ZoneID: "ZONE-001", NoWait: true})
	s.True(dErrors.HasCode(err, dErrors.CodeBusy), "no-wait caller is rejected while the zone fusion is in flight")

	close(gate)
	<-done

	s.Run("an idle zone accepts no-wait calls", func() {
		cls, err := svc.Classify(context.Background(), intent.ClassifyRequest{ZoneID: "ZONE-002", NoWait: true})
		s.Require().NoError(err)
		s.NotNil(cls)
	})
}

// failingAuditor rejects every record.
type failingAuditor struct{}

func (failingAuditor) Record(context.Context, audit.SubjectType, string, domain.ZoneID, domain.ClassificationID, any) (*audit.Entry, error) {
	return nil, dErrors.New(dErrors.CodeUnavailable, "audit append failed")
}

func (s *IntentServiceSuite) TestAuditFailureAbortsClassification() {
	svc := intent.NewService(
		intent.DefaultConfig(),
		&stubVisionSource{},
		stubSensorSource{},
		fixedVision{score: modalityScore(reading.ModalityVision, 95, "missing-fish-plate")},
		fixedSensor{score: modalityScore(reading.ModalitySensor, 95, "sudden-change-vibration")},
		failingAuditor{},
		s.alerts,
		s.bus,
		slog.Default(),
		nil,
	)

	_, err := svc.Classify(context.Background(), intent.ClassifyRequest{ZoneID: "ZONE-001"})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	active, storeErr := s.alertStore.Active(context.Background())
	s.Require().NoError(storeErr)
	s.Empty(active, "no alert may follow an unrecorded classification")
	s.Empty(s.bus.events, "nothing is disseminated for an unrecorded classification")
}

func (s *IntentServiceSuite) TestRepeatedAnomaliesEscalateRisk() {
	svc := s.newService(
		intent.DefaultConfig(),
		&stubVisionSource{},
		modalityScore(reading.ModalityVision, 50, "foreign-object"),
		modalityScore(reading.ModalitySensor, 50, "vibration-anomaly"),
	)

	first, err := svc.Classify(context.Background(), intent.ClassifyRequest{ZoneID: "ZONE-001"})
	s.Require().NoError(err)
	s.Zero(first.TemporalScore)
	s.InDelta(45, first.RiskScore, 0.001)

	s.now = s.now.Add(time.Minute)
	second, err := svc.Classify(context.Background(), intent.ClassifyRequest{ZoneID: "ZONE-001"})
	s.Require().NoError(err)
	s.Zero(second.TemporalScore)

	// Two above-suspicious classifications inside the window: the temporal
	// term kicks in at full scale.
	s.now = s.now.Add(time.Minute)
	third, err := svc.Classify(context.Background(), intent.ClassifyRequest{ZoneID: "ZONE-001"})
	s.Require().NoError(err)
	s.InDelta(100, third.TemporalScore, 0.001)
	s.InDelta(55, third.RiskScore, 0.001) // 0.45*50 + 0.45*50 + 0.10*100
}
