package intent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trackguard/internal/alert"
	"trackguard/internal/audit"
	"trackguard/internal/bus"
	intentmetrics "trackguard/internal/intent/metrics"
	"trackguard/internal/reading"
	"trackguard/pkg/domain"
	dErrors "trackguard/pkg/domain-errors"
	"trackguard/pkg/requestcontext"
)

// VisionAnalyzer scores one vision reading.
type VisionAnalyzer interface {
	Score(r reading.VisionReading) reading.ModalityScore
}

// SensorAnalyzer scores one batch of sensor readings.
type SensorAnalyzer interface {
	Score(readings []reading.SensorReading) reading.ModalityScore
}

// Auditor records classifications on the tamper-evident log.
type Auditor interface {
	Record(ctx context.Context, subjectType audit.SubjectType, subjectID string, zone domain.ZoneID, origin domain.ClassificationID, payload any) (*audit.Entry, error)
}

// AlertEvaluator feeds completed classifications to the alert lifecycle.
type AlertEvaluator interface {
	FromClassification(ctx context.Context, in alert.ClassificationInput) (*alert.Alert, error)
}

// Publisher disseminates classification results.
type Publisher interface {
	Publish(ev bus.Event)
}

// errModalityDisabled routes a caller-disabled modality through the fallback
// path, same as a timeout: a channel that did not look is not a safe channel.
var errModalityDisabled = errors.New("modality disabled by request")

// Service orchestrates fusion: concurrent modality analysis under deadlines,
// the pure fusion step, then the audit/alert/dissemination chain. At most one
// fusion runs per zone; concurrent callers coalesce onto it via singleflight.
type Service struct {
	cfg       Config
	visionSrc reading.VisionSource
	sensorSrc reading.SensorSource
	vision    VisionAnalyzer
	sensor    SensorAnalyzer
	auditor   Auditor
	alerts    AlertEvaluator
	bus       Publisher
	history   *history
	logger    *slog.Logger
	metrics   *intentmetrics.Metrics
	clock     func() time.Time

	group      singleflight.Group
	inflightMu sync.Mutex
	inflight   map[domain.ZoneID]int
}

// NewService constructs the fusion service.
func NewService(
	cfg Config,
	visionSrc reading.VisionSource,
	sensorSrc reading.SensorSource,
	visionAnalyzer VisionAnalyzer,
	sensorAnalyzer SensorAnalyzer,
	auditor Auditor,
	alerts AlertEvaluator,
	publisher Publisher,
	logger *slog.Logger,
	m *intentmetrics.Metrics,
) *Service {
	return &Service{
		cfg:       cfg,
		visionSrc: visionSrc,
		sensorSrc: sensorSrc,
		vision:    visionAnalyzer,
		sensor:    sensorAnalyzer,
		auditor:   auditor,
		alerts:    alerts,
		bus:       publisher,
		history:   newHistory(cfg.Temporal, cfg.Thresholds.Suspicious),
		logger:    logger,
		metrics:   m,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Classify runs (or joins) the fusion for a zone. Concurrent calls for the
// same zone share a single fusion and its classification; NoWait callers are
// rejected with Busy instead of waiting.
func (s *Service) Classify(ctx context.Context, req ClassifyRequest) (*Classification, error) {
	if req.ZoneID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "zone_id is required")
	}

	if req.NoWait && s.busy(req.ZoneID) {
		if s.metrics != nil {
			s.metrics.Rejected.Inc()
		}
		return nil, dErrors.New(dErrors.CodeBusy, "classification already in flight for zone")
	}

	// Mark the zone busy before joining the group so a NoWait caller racing
	// this one is rejected rather than coalesced.
	s.enter(req.ZoneID)
	defer s.leave(req.ZoneID)

	// The fusion outlives any one caller: a coalesced caller's cancellation
	// must not abort the shared work.
	fusionCtx := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(req.ZoneID.String(), func() (any, error) {
		return s.classify(fusionCtx, req)
	})
	if shared && s.metrics != nil {
		s.metrics.Coalesced.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*Classification), nil
}

func (s *Service) busy(zone domain.ZoneID) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	return s.inflight[zone] > 0
}

// enter and leave refcount the callers attached to a zone's fusion, so busy
// covers the whole span a fusion has waiters, not just while fn runs.
func (s *Service) enter(zone domain.ZoneID) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if s.inflight == nil {
		s.inflight = make(map[domain.ZoneID]int)
	}
	s.inflight[zone]++
}

func (s *Service) leave(zone domain.ZoneID) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if s.inflight[zone] <= 1 {
		delete(s.inflight, zone)
		return
	}
	s.inflight[zone]--
}

func (s *Service) classify(ctx context.Context, req ClassifyRequest) (*Classification, error) {
	start := time.Now()
	now := s.clock()

	var (
		visionOut, sensorOut modalityOutcome
		wg                   sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if req.SkipVision {
			visionOut = s.fallback(ctx, reading.ModalityVision, errModalityDisabled)
			return
		}
		visionOut = s.runVision(ctx, req.ZoneID, req.Scenario)
	}()
	go func() {
		defer wg.Done()
		if req.SkipSensor {
			sensorOut = s.fallback(ctx, reading.ModalitySensor, errModalityDisabled)
			return
		}
		sensorOut = s.runSensor(ctx, req.ZoneID, req.Scenario)
	}()
	wg.Wait()

	temporal := s.history.temporalScore(req.ZoneID, now)
	f := fuse(s.cfg, visionOut, sensorOut, temporal)

	cls := &Classification{
		ID:                 domain.NewClassificationID(),
		ZoneID:             req.ZoneID,
		Timestamp:          now,
		Label:              f.label,
		RiskScore:          f.risk,
		Confidence:         f.confidence,
		VisionScore:        visionOut.score.Value,
		SensorScore:        sensorOut.score.Value,
		TemporalScore:      temporal,
		PrimaryReasons:     f.reasons,
		RecommendedActions: f.actions,
		ProcessingMillis:   float64(time.Since(start).Microseconds()) / 1000,
	}
	for _, out := range []modalityOutcome{visionOut, sensorOut} {
		if out.degraded {
			cls.Degraded = true
			cls.DegradedModalities = append(cls.DegradedModalities, string(out.modality))
		}
	}

	// Audit first: a classification the log cannot record never happened.
	if _, err := s.auditor.Record(ctx, audit.SubjectClassification, cls.ID.String(), cls.ZoneID, "", cls); err != nil {
		return nil, err
	}
	s.history.note(req.ZoneID, now, f.risk)

	if _, err := s.alerts.FromClassification(ctx, alert.ClassificationInput{
		ClassificationID: cls.ID,
		ZoneID:           cls.ZoneID,
		Label:            string(cls.Label),
		RiskScore:        cls.RiskScore,
		Reasons:          cls.PrimaryReasons,
		Timestamp:        cls.Timestamp,
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, cls)

	if s.metrics != nil {
		s.metrics.Classifications.WithLabelValues(string(cls.Label)).Inc()
		s.metrics.RiskScore.Observe(cls.RiskScore)
		s.metrics.Duration.Observe(time.Since(start).Seconds())
	}
	s.logger.InfoContext(ctx, "classification complete",
		"request_id", requestcontext.RequestID(ctx),
		"classification_id", cls.ID,
		"zone_id", cls.ZoneID,
		"label", cls.Label,
		"risk_score", cls.RiskScore,
		"confidence", cls.Confidence,
		"degraded", cls.Degraded,
	)
	return cls, nil
}

func (s *Service) runVision(ctx context.Context, zone domain.ZoneID, scenario reading.Scenario) modalityOutcome {
	mctx, cancel := context.WithTimeout(ctx, s.cfg.ModalityTimeout)
	defer cancel()

	type result struct {
		score reading.ModalityScore
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		r, err := s.visionSrc.Capture(mctx, zone, scenario)
		if err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{score: s.vision.Score(r)}
	}()

	select {
	case <-mctx.Done():
		return s.fallback(ctx, reading.ModalityVision, mctx.Err())
	case out := <-ch:
		if out.err != nil {
			return s.fallback(ctx, reading.ModalityVision, out.err)
		}
		return modalityOutcome{modality: reading.ModalityVision, score: out.score}
	}
}

func (s *Service) runSensor(ctx context.Context, zone domain.ZoneID, scenario reading.Scenario) modalityOutcome {
	mctx, cancel := context.WithTimeout(ctx, s.cfg.ModalityTimeout)
	defer cancel()

	type result struct {
		score reading.ModalityScore
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		readings, err := s.sensorSrc.Capture(mctx, zone, scenario)
		if err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{score: s.sensor.Score(readings)}
	}()

	select {
	case <-mctx.Done():
		return s.fallback(ctx, reading.ModalitySensor, mctx.Err())
	case out := <-ch:
		if out.err != nil {
			return s.fallback(ctx, reading.ModalitySensor, out.err)
		}
		return modalityOutcome{modality: reading.ModalitySensor, score: out.score}
	}
}

// fallback substitutes a failed modality. The fallback score is biased
// upward: losing an eye is itself suspicious, and a blind system must never
// report SAFE for free.
func (s *Service) fallback(ctx context.Context, modality reading.Modality, cause error) modalityOutcome {
	tag := "vision-degraded"
	if modality == reading.ModalitySensor {
		tag = "sensor-degraded"
	}
	if s.metrics != nil {
		s.metrics.Degraded.WithLabelValues(string(modality)).Inc()
	}
	s.logger.WarnContext(ctx, "modality analysis degraded",
		"request_id", requestcontext.RequestID(ctx),
		"modality", modality,
		"error", cause,
	)
	return modalityOutcome{
		modality: modality,
		degraded: true,
		score: reading.ModalityScore{
			Modality: modality,
			Value:    s.cfg.FallbackScore,
			Tags:     []string{tag},
			Findings: []reading.Finding{{Tag: tag, Contribution: s.cfg.FallbackScore}},
		},
	}
}

func (s *Service) publish(ctx context.Context, cls *Classification) {
	ev, err := bus.NewEvent(bus.TypeAnalysisUpdate, cls.ZoneID, cls)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode classification event",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	s.bus.Publish(ev)
}
