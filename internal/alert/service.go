package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	alertmetrics "trackguard/internal/alert/metrics"
	"trackguard/internal/audit"
	"trackguard/internal/bus"
	"trackguard/pkg/domain"
	dErrors "trackguard/pkg/domain-errors"
	"trackguard/pkg/requestcontext"
)

// Auditor records lifecycle transitions on the tamper-evident log. Every
// transition must be recorded before the caller observes success.
type Auditor interface {
	Record(ctx context.Context, subjectType audit.SubjectType, subjectID string, zone domain.ZoneID, origin domain.ClassificationID, payload any) (*audit.Entry, error)
}

// Publisher disseminates lifecycle events to connected observers.
type Publisher interface {
	Publish(ev bus.Event)
}

// Config tunes severity grading and flood protection.
type Config struct {
	// Severity band lower bounds on the 0..100 risk score. Scores below
	// MediumRisk grade LOW.
	MediumRisk   float64
	HighRisk     float64
	CriticalRisk float64

	// TamperingFloor is the minimum severity for CONFIRMED_TAMPERING
	// classifications regardless of score band.
	TamperingFloor Severity

	// Cooldown suppresses a new alert for a zone within this window of the
	// zone's previous alert. Zero disables the guard.
	Cooldown time.Duration
	// MaxPerZonePerHour caps fresh alerts per zone per rolling hour. Zero
	// disables the guard.
	MaxPerZonePerHour int

	// RecentLimit bounds the recent list in the status summary.
	RecentLimit int
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		MediumRisk:        50,
		HighRisk:          70,
		CriticalRisk:      85,
		TamperingFloor:    SeverityHigh,
		Cooldown:          0,
		MaxPerZonePerHour: 10,
		RecentLimit:       10,
	}
}

// SeverityFor grades a classification into a severity band.
func (c Config) SeverityFor(label string, risk float64) Severity {
	var sev Severity
	switch {
	case risk >= c.CriticalRisk:
		sev = SeverityCritical
	case risk >= c.HighRisk:
		sev = SeverityHigh
	case risk >= c.MediumRisk:
		sev = SeverityMedium
	default:
		sev = SeverityLow
	}
	if label == LabelConfirmedTampering && sev.Rank() < c.TamperingFloor.Rank() {
		sev = c.TamperingFloor
	}
	return sev
}

// Service drives the alert lifecycle. Lifecycle mutations are serialized
// under one lock so the dedup and state-machine checks cannot race; reads
// (Status) take the store path without the lock.
type Service struct {
	cfg     Config
	store   Store
	auditor Auditor
	bus     Publisher
	logger  *slog.Logger
	metrics *alertmetrics.Metrics
	clock   func() time.Time

	mu sync.Mutex
}

// NewService constructs the alert lifecycle service.
func NewService(cfg Config, store Store, auditor Auditor, publisher Publisher, logger *slog.Logger, m *alertmetrics.Metrics) *Service {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 10
	}
	return &Service{
		cfg:     cfg,
		store:   store,
		auditor: auditor,
		bus:     publisher,
		logger:  logger,
		metrics: m,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// FromClassification evaluates a completed classification against the alert
// state for its zone. SAFE classifications never alert. When the zone already
// has an open alert, an equal-or-lower severity classification is absorbed by
// it and a higher one escalates it in place; no duplicate alert is opened.
// Otherwise a new alert opens unless a flood guard suppresses it.
//
// The returned alert is the open alert covering the classification, or nil
// when nothing is open (SAFE input or suppression).
func (s *Service) FromClassification(ctx context.Context, in ClassificationInput) (*Alert, error) {
	if in.Label == LabelSafe {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	severity := s.cfg.SeverityFor(in.Label, in.RiskScore)

	open, err := s.store.OpenByZone(ctx, in.ZoneID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "query open alerts", err)
	}
	if len(open) > 0 {
		return s.coverWithExisting(ctx, open, in, severity, now)
	}

	if suppressed, reason, err := s.floodGuard(ctx, in.ZoneID, now); err != nil {
		return nil, err
	} else if suppressed {
		if s.metrics != nil {
			s.metrics.Suppressed.WithLabelValues(reason).Inc()
		}
		s.logger.InfoContext(ctx, "alert suppressed",
			"request_id", requestcontext.RequestID(ctx),
			"zone_id", in.ZoneID,
			"reason", reason,
		)
		return nil, nil
	}

	return s.open(ctx, in, severity, now)
}

// coverWithExisting absorbs the classification into the zone's open alert,
// escalating severity when the new classification grades higher. The newest
// open alert covers the zone; older open alerts are historical leftovers.
func (s *Service) coverWithExisting(ctx context.Context, open []Alert, in ClassificationInput, severity Severity, now time.Time) (*Alert, error) {
	covering := open[0]
	if severity.Rank() <= covering.Severity.Rank() {
		if s.metrics != nil {
			s.metrics.Suppressed.WithLabelValues("dedup").Inc()
		}
		return &covering, nil
	}

	from := covering.Status
	covering.Severity = severity
	covering.ClassificationID = in.ClassificationID
	covering.RiskScore = in.RiskScore
	covering.Reasons = in.Reasons
	covering.Description = describeAlert(in)
	covering.UpdatedAt = now

	transition := Transition{
		Action:   ActionEscalated,
		From:     from,
		To:       covering.Status,
		Severity: severity,
		At:       now,
		Alert:    covering,
	}
	if _, err := s.auditor.Record(ctx, audit.SubjectAlertTransition, covering.ID.String(), covering.ZoneID, in.ClassificationID, transition); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, covering); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "escalate alert", err)
	}
	s.publish(ctx, bus.TypeAlertTransition, covering.ZoneID, transition)
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(ActionEscalated)).Inc()
	}
	s.logger.InfoContext(ctx, "alert escalated",
		"request_id", requestcontext.RequestID(ctx),
		"alert_id", covering.ID,
		"zone_id", covering.ZoneID,
		"severity", covering.Severity,
	)
	return &covering, nil
}

// floodGuard applies the cooldown and hourly-cap rules for a zone.
func (s *Service) floodGuard(ctx context.Context, zone domain.ZoneID, now time.Time) (bool, string, error) {
	if s.cfg.Cooldown > 0 {
		last, err := s.store.LastCreatedAt(ctx, zone)
		if err != nil {
			return false, "", dErrors.Wrap(dErrors.CodeInternal, "query last alert", err)
		}
		if last != nil && now.Sub(*last) < s.cfg.Cooldown {
			return true, "cooldown", nil
		}
	}
	if s.cfg.MaxPerZonePerHour > 0 {
		n, err := s.store.CountCreatedSince(ctx, zone, now.Add(-time.Hour))
		if err != nil {
			return false, "", dErrors.Wrap(dErrors.CodeInternal, "count recent alerts", err)
		}
		if n >= s.cfg.MaxPerZonePerHour {
			return true, "hourly_cap", nil
		}
	}
	return false, "", nil
}

func (s *Service) open(ctx context.Context, in ClassificationInput, severity Severity, now time.Time) (*Alert, error) {
	a := Alert{
		ID:               domain.NewAlertID(),
		ZoneID:           in.ZoneID,
		ClassificationID: in.ClassificationID,
		Severity:         severity,
		Status:           StatusActive,
		Label:            in.Label,
		RiskScore:        in.RiskScore,
		Title:            titleFor(in.Label, severity),
		Description:      describeAlert(in),
		Reasons:          in.Reasons,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	transition := Transition{
		Action:   ActionOpened,
		To:       StatusActive,
		Severity: severity,
		At:       now,
		Alert:    a,
	}
	if _, err := s.auditor.Record(ctx, audit.SubjectAlertTransition, a.ID.String(), a.ZoneID, in.ClassificationID, transition); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "create alert", err)
	}
	s.publish(ctx, bus.TypeAlertNew, a.ZoneID, transition)
	if s.metrics != nil {
		s.metrics.Opened.WithLabelValues(string(severity)).Inc()
		s.metrics.Active.Inc()
	}
	s.logger.InfoContext(ctx, "alert opened",
		"request_id", requestcontext.RequestID(ctx),
		"alert_id", a.ID,
		"zone_id", a.ZoneID,
		"severity", a.Severity,
		"risk_score", a.RiskScore,
	)
	return &a, nil
}

// Acknowledge moves an active alert to acknowledged. Only the active state
// accepts acknowledgement; re-acknowledging or acknowledging a resolved alert
// is an invalid transition.
func (s *Service) Acknowledge(ctx context.Context, id domain.AlertID, by, notes string) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case StatusResolved:
		return nil, dErrors.New(dErrors.CodeInvalidState, "alert is already resolved")
	case StatusAcknowledged:
		return nil, dErrors.New(dErrors.CodeInvalidState, "alert is already acknowledged")
	}

	now := s.clock()
	from := a.Status
	a.Status = StatusAcknowledged
	a.AcknowledgedBy = by
	a.AcknowledgedAt = &now
	a.AcknowledgementNotes = notes
	a.UpdatedAt = now

	if err := s.commitTransition(ctx, *a, Transition{
		Action:   ActionAcknowledged,
		From:     from,
		To:       StatusAcknowledged,
		Severity: a.Severity,
		By:       by,
		Notes:    notes,
		At:       now,
		Alert:    *a,
	}); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Active.Dec()
	}
	return a, nil
}

// Resolve closes an alert from the active or acknowledged state. Resolving
// straight from active skips the acknowledgement step and therefore requires
// notes; the resolver's tampering verdict is retained for later analysis.
func (s *Service) Resolve(ctx context.Context, id domain.AlertID, by, notes string, wasActualTampering bool) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusResolved {
		return nil, dErrors.New(dErrors.CodeInvalidState, "alert is already resolved")
	}
	if a.Status == StatusActive && notes == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "resolving an unacknowledged alert requires notes")
	}

	now := s.clock()
	from := a.Status
	verdict := wasActualTampering
	a.Status = StatusResolved
	a.ResolvedBy = by
	a.ResolvedAt = &now
	a.ResolutionNotes = notes
	a.WasActualTampering = &verdict
	a.UpdatedAt = now

	if err := s.commitTransition(ctx, *a, Transition{
		Action:   ActionResolved,
		From:     from,
		To:       StatusResolved,
		Severity: a.Severity,
		By:       by,
		Notes:    notes,
		At:       now,
		Alert:    *a,
	}); err != nil {
		return nil, err
	}
	if s.metrics != nil && from == StatusActive {
		s.metrics.Active.Dec()
	}
	return a, nil
}

// commitTransition records the transition on the audit log, persists the
// alert, then disseminates. Audit comes first: a transition the log cannot
// record must not be observable anywhere else.
func (s *Service) commitTransition(ctx context.Context, a Alert, t Transition) error {
	if _, err := s.auditor.Record(ctx, audit.SubjectAlertTransition, a.ID.String(), a.ZoneID, a.ClassificationID, t); err != nil {
		return err
	}
	if err := s.store.Update(ctx, a); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, fmt.Sprintf("persist %s transition", t.Action), err)
	}
	s.publish(ctx, bus.TypeAlertTransition, a.ZoneID, t)
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(t.Action)).Inc()
	}
	s.logger.InfoContext(ctx, "alert transition",
		"request_id", requestcontext.RequestID(ctx),
		"alert_id", a.ID,
		"action", t.Action,
		"by", t.By,
	)
	return nil
}

// Get returns one alert by id.
func (s *Service) Get(ctx context.Context, id domain.AlertID) (*Alert, error) {
	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id domain.AlertID) (*Alert, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load alert", err)
	}
	if a == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "alert not found")
	}
	return a, nil
}

// History lists past alerts matching the query, newest first. The limit is
// clamped to 500; non-positive limits take the default of 50.
func (s *Service) History(ctx context.Context, q HistoryQuery, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	alerts, err := s.store.History(ctx, q, limit)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "query alert history", err)
	}
	return alerts, nil
}

// Status summarizes current alert load for operator dashboards.
func (s *Service) Status(ctx context.Context) (*StatusSummary, error) {
	active, err := s.store.Active(ctx)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "query active alerts", err)
	}
	recent, err := s.store.Recent(ctx, s.cfg.RecentLimit)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "query recent alerts", err)
	}
	last24, err := s.store.CountCreatedSince(ctx, "", s.clock().Add(-24*time.Hour))
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "count recent alerts", err)
	}

	summary := &StatusSummary{
		TotalActive: len(active),
		BySeverity: map[Severity]int{
			SeverityLow:      0,
			SeverityMedium:   0,
			SeverityHigh:     0,
			SeverityCritical: 0,
		},
		AlertsLast24: last24,
		RecentAlerts: recent,
	}
	for i, a := range active {
		summary.BySeverity[a.Severity]++
		if summary.MostUrgent == nil || a.Severity.Rank() > summary.MostUrgent.Severity.Rank() {
			summary.MostUrgent = &active[i]
		}
	}
	return summary, nil
}

func (s *Service) publish(ctx context.Context, t bus.EventType, zone domain.ZoneID, payload any) {
	ev, err := bus.NewEvent(t, zone, payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode alert event",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	s.bus.Publish(ev)
}

func titleFor(label string, severity Severity) string {
	if label == LabelConfirmedTampering {
		return fmt.Sprintf("%s: confirmed track tampering", severity)
	}
	return fmt.Sprintf("%s: suspicious track activity", severity)
}

func describeAlert(in ClassificationInput) string {
	if len(in.Reasons) == 0 {
		return fmt.Sprintf("Zone %s classified %s with risk score %.1f.", in.ZoneID, in.Label, in.RiskScore)
	}
	return fmt.Sprintf("Zone %s classified %s with risk score %.1f. Primary findings: %s.",
		in.ZoneID, in.Label, in.RiskScore, joinReasons(in.Reasons))
}

func joinReasons(reasons []string) string {
	const max = 5
	if len(reasons) > max {
		reasons = reasons[:max]
	}
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += ", "
		}
		out += r
	}
	return out
}
