// Package alert owns the alert lifecycle: opening alerts from classification
// results, escalating ongoing ones, and driving the
// active -> acknowledged -> resolved state machine. All alert mutation goes
// through this package; alerts are never deleted, resolved alerts remain for
// audit.
package alert

import (
	"time"

	"trackguard/pkg/domain"
)

// Severity grades operator urgency.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank orders severities for comparison; unknown severities rank lowest.
func (s Severity) Rank() int { return severityRank[s] }

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Classification labels the alert manager reacts to. The fusion engine owns
// the label semantics; this package only needs the alerting threshold.
const (
	LabelSafe               = "SAFE"
	LabelSuspicious         = "SUSPICIOUS"
	LabelConfirmedTampering = "CONFIRMED_TAMPERING"
)

// Alert is a tracked, acknowledgeable incident for a zone.
type Alert struct {
	ID               domain.AlertID          `json:"alert_id"`
	ZoneID           domain.ZoneID           `json:"zone_id"`
	ClassificationID domain.ClassificationID `json:"classification_id"`
	Severity         Severity                `json:"severity"`
	Status           Status                  `json:"status"`
	Label            string                  `json:"label"`
	RiskScore        float64                 `json:"risk_score"`
	Title            string                  `json:"title"`
	Description      string                  `json:"description"`
	Reasons          []string                `json:"reasons,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`

	AcknowledgedBy       string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt       *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgementNotes string     `json:"acknowledgement_notes,omitempty"`

	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`

	// WasActualTampering is recorded by the resolver for later
	// false-positive-rate analysis; it is never inferred automatically.
	WasActualTampering *bool `json:"was_actual_tampering,omitempty"`
}

// Open reports whether the alert still demands operator attention.
func (a Alert) Open() bool { return a.Status != StatusResolved }

// ClassificationInput is the slice of a classification result the lifecycle
// manager needs. The fusion engine passes it for every completed fusion.
type ClassificationInput struct {
	ClassificationID domain.ClassificationID
	ZoneID           domain.ZoneID
	Label            string
	RiskScore        float64
	Reasons          []string
	Timestamp        time.Time
}

// TransitionAction names a lifecycle transition for audit and dissemination.
type TransitionAction string

const (
	ActionOpened       TransitionAction = "opened"
	ActionEscalated    TransitionAction = "escalated"
	ActionAcknowledged TransitionAction = "acknowledged"
	ActionResolved     TransitionAction = "resolved"
)

// Transition is the audit/bus snapshot of one lifecycle change.
type Transition struct {
	Action   TransitionAction `json:"action"`
	From     Status           `json:"from,omitempty"`
	To       Status           `json:"to"`
	Severity Severity         `json:"severity"`
	By       string           `json:"by,omitempty"`
	Notes    string           `json:"notes,omitempty"`
	At       time.Time        `json:"at"`
	Alert    Alert            `json:"alert"`
}

// HistoryQuery filters the alert history listing. Zero-valued fields match
// all alerts.
type HistoryQuery struct {
	ZoneID   domain.ZoneID
	Severity Severity
	Status   Status
}

// Matches reports whether the alert satisfies every set filter.
func (q HistoryQuery) Matches(a Alert) bool {
	if q.ZoneID != "" && a.ZoneID != q.ZoneID {
		return false
	}
	if q.Severity != "" && a.Severity != q.Severity {
		return false
	}
	if q.Status != "" && a.Status != q.Status {
		return false
	}
	return true
}

// StatusSummary is the operator-facing overview of alert load.
type StatusSummary struct {
	TotalActive  int              `json:"total_active"`
	BySeverity   map[Severity]int `json:"by_severity"`
	MostUrgent   *Alert           `json:"most_urgent,omitempty"`
	AlertsLast24 int              `json:"alerts_last_24h"`
	RecentAlerts []Alert          `json:"recent_alerts"`
}
