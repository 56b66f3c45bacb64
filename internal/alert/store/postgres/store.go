// Package postgres implements the alert store contract on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"trackguard/internal/alert"
	"trackguard/pkg/domain"
)

// Store persists alerts in the alerts table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL alert store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the alerts table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS alerts (
	alert_id             TEXT PRIMARY KEY,
	zone_id              TEXT NOT NULL,
	classification_id    TEXT NOT NULL,
	severity             TEXT NOT NULL,
	status               TEXT NOT NULL,
	label                TEXT NOT NULL,
	risk_score           DOUBLE PRECISION NOT NULL,
	title                TEXT NOT NULL,
	description          TEXT NOT NULL,
	reasons              JSONB NOT NULL DEFAULT '[]',
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	acknowledged_by      TEXT NOT NULL DEFAULT '',
	acknowledged_at      TIMESTAMPTZ,
	acknowledgement_notes TEXT NOT NULL DEFAULT '',
	resolved_by          TEXT NOT NULL DEFAULT '',
	resolved_at          TIMESTAMPTZ,
	resolution_notes     TEXT NOT NULL DEFAULT '',
	was_actual_tampering BOOLEAN
);
CREATE INDEX IF NOT EXISTS alerts_zone_status_idx ON alerts (zone_id, status);
CREATE INDEX IF NOT EXISTS alerts_created_idx ON alerts (created_at DESC);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("alert schema: %w", err)
	}
	return nil
}

const columns = `alert_id, zone_id, classification_id, severity, status, label, risk_score,
	title, description, reasons, created_at, updated_at,
	acknowledged_by, acknowledged_at, acknowledgement_notes,
	resolved_by, resolved_at, resolution_notes, was_actual_tampering`

// Create inserts a new alert.
func (s *Store) Create(ctx context.Context, a alert.Alert) error {
	const q = `INSERT INTO alerts (` + columns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`
	reasons, err := json.Marshal(a.Reasons)
	if err != nil {
		return fmt.Errorf("alert create: encode reasons: %w", err)
	}
	_, err = s.db.ExecContext(ctx, q,
		a.ID.String(), a.ZoneID.String(), a.ClassificationID.String(),
		string(a.Severity), string(a.Status), a.Label, a.RiskScore,
		a.Title, a.Description, reasons, a.CreatedAt, a.UpdatedAt,
		a.AcknowledgedBy, a.AcknowledgedAt, a.AcknowledgementNotes,
		a.ResolvedBy, a.ResolvedAt, a.ResolutionNotes, a.WasActualTampering,
	)
	if err != nil {
		return fmt.Errorf("alert create: %w", err)
	}
	return nil
}

// Get returns the alert, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id domain.AlertID) (*alert.Alert, error) {
	const q = `SELECT ` + columns + ` FROM alerts WHERE alert_id = $1`
	alerts, err := s.query(ctx, q, id.String())
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return nil, nil
	}
	return &alerts[0], nil
}

// Update replaces the mutable fields of a stored alert.
func (s *Store) Update(ctx context.Context, a alert.Alert) error {
	const q = `UPDATE alerts SET
		severity = $2, status = $3, classification_id = $4, risk_score = $5,
		title = $6, description = $7, reasons = $8, updated_at = $9,
		acknowledged_by = $10, acknowledged_at = $11, acknowledgement_notes = $12,
		resolved_by = $13, resolved_at = $14, resolution_notes = $15,
		was_actual_tampering = $16
		WHERE alert_id = $1`
	reasons, err := json.Marshal(a.Reasons)
	if err != nil {
		return fmt.Errorf("alert update: encode reasons: %w", err)
	}
	res, err := s.db.ExecContext(ctx, q,
		a.ID.String(),
		string(a.Severity), string(a.Status), a.ClassificationID.String(), a.RiskScore,
		a.Title, a.Description, reasons, a.UpdatedAt,
		a.AcknowledgedBy, a.AcknowledgedAt, a.AcknowledgementNotes,
		a.ResolvedBy, a.ResolvedAt, a.ResolutionNotes, a.WasActualTampering,
	)
	if err != nil {
		return fmt.Errorf("alert update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("alert update: %s not found", a.ID)
	}
	return nil
}

// OpenByZone returns active and acknowledged alerts for the zone, newest first.
func (s *Store) OpenByZone(ctx context.Context, zone domain.ZoneID) ([]alert.Alert, error) {
	const q = `SELECT ` + columns + ` FROM alerts
		WHERE zone_id = $1 AND status <> 'resolved' ORDER BY created_at DESC`
	return s.query(ctx, q, zone.String())
}

// Active returns all active alerts, newest first.
func (s *Store) Active(ctx context.Context) ([]alert.Alert, error) {
	const q = `SELECT ` + columns + ` FROM alerts WHERE status = 'active' ORDER BY created_at DESC`
	return s.query(ctx, q)
}

// Recent returns up to limit alerts in any state, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]alert.Alert, error) {
	const q = `SELECT ` + columns + ` FROM alerts ORDER BY created_at DESC LIMIT $1`
	return s.query(ctx, q, limit)
}

// History returns up to limit alerts matching the query, newest first.
func (s *Store) History(ctx context.Context, hq alert.HistoryQuery, limit int) ([]alert.Alert, error) {
	q := `SELECT ` + columns + ` FROM alerts WHERE 1=1`
	args := []any{}
	if hq.ZoneID != "" {
		args = append(args, hq.ZoneID.String())
		q += fmt.Sprintf(" AND zone_id = $%d", len(args))
	}
	if hq.Severity != "" {
		args = append(args, string(hq.Severity))
		q += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if hq.Status != "" {
		args = append(args, string(hq.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	return s.query(ctx, q, args...)
}

// CountCreatedSince counts alerts created at or after since; empty zone
// matches all zones.
func (s *Store) CountCreatedSince(ctx context.Context, zone domain.ZoneID, since time.Time) (int, error) {
	var (
		n   int
		err error
	)
	if zone == "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM alerts WHERE created_at >= $1`, since).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM alerts WHERE zone_id = $1 AND created_at >= $2`, zone.String(), since).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("alert count: %w", err)
	}
	return n, nil
}

// LastCreatedAt returns the newest creation time for the zone, or nil.
func (s *Store) LastCreatedAt(ctx context.Context, zone domain.ZoneID) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM alerts WHERE zone_id = $1 ORDER BY created_at DESC LIMIT 1`,
		zone.String()).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("alert last created: %w", err)
	}
	t = t.UTC()
	return &t, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]alert.Alert, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("alert query: %w", err)
	}
	defer rows.Close()

	var out []alert.Alert
	for rows.Next() {
		var (
			a        alert.Alert
			id       string
			zone     string
			clsID    string
			severity string
			status   string
			reasons  []byte
			ackAt    sql.NullTime
			resAt    sql.NullTime
			tamper   sql.NullBool
		)
		if err := rows.Scan(
			&id, &zone, &clsID, &severity, &status, &a.Label, &a.RiskScore,
			&a.Title, &a.Description, &reasons, &a.CreatedAt, &a.UpdatedAt,
			&a.AcknowledgedBy, &ackAt, &a.AcknowledgementNotes,
			&a.ResolvedBy, &resAt, &a.ResolutionNotes, &tamper,
		); err != nil {
			return nil, fmt.Errorf("alert scan: %w", err)
		}
		a.ID = domain.AlertID(id)
		a.ZoneID = domain.ZoneID(zone)
		a.ClassificationID = domain.ClassificationID(clsID)
		a.Severity = alert.Severity(severity)
		a.Status = alert.Status(status)
		// timestamptz comes back in the session timezone; normalize.
		a.CreatedAt = a.CreatedAt.UTC()
		a.UpdatedAt = a.UpdatedAt.UTC()
		if err := json.Unmarshal(reasons, &a.Reasons); err != nil {
			return nil, fmt.Errorf("alert scan: decode reasons: %w", err)
		}
		if ackAt.Valid {
			t := ackAt.Time.UTC()
			a.AcknowledgedAt = &t
		}
		if resAt.Valid {
			t := resAt.Time.UTC()
			a.ResolvedAt = &t
		}
		if tamper.Valid {
			b := tamper.Bool
			a.WasActualTampering = &b
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
