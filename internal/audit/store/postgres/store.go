// Package postgres implements the audit store contract on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trackguard/internal/audit"
	"trackguard/pkg/domain"
)

// Store persists audit entries in the audit_entries table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit table when missing. The table carries no
// UPDATE or DELETE path in this codebase; append-only discipline is enforced
// at the application layer and verifiable through the hash chain. The
// snapshot column is JSON, not JSONB: JSONB normalizes key order and would
// change the entry's hash on the way back out.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS audit_entries (
	seq          BIGINT PRIMARY KEY,
	entry_id     TEXT NOT NULL UNIQUE,
	ts           TIMESTAMPTZ NOT NULL,
	subject_type TEXT NOT NULL,
	subject_id   TEXT NOT NULL,
	zone_id      TEXT NOT NULL,
	origin_id    TEXT NOT NULL DEFAULT '',
	snapshot     JSON NOT NULL,
	prev_hash    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_entries_zone_idx ON audit_entries (zone_id, seq DESC);
CREATE INDEX IF NOT EXISTS audit_entries_ts_idx ON audit_entries (ts);
CREATE INDEX IF NOT EXISTS audit_entries_origin_idx ON audit_entries (origin_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("audit schema: %w", err)
	}
	return nil
}

const columns = `seq, entry_id, ts, subject_type, subject_id, zone_id, origin_id, snapshot, prev_hash`

// Append persists a new entry.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	const q = `INSERT INTO audit_entries (` + columns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := s.db.ExecContext(ctx, q,
		entry.Seq,
		entry.ID.String(),
		entry.Timestamp,
		string(entry.SubjectType),
		entry.SubjectID,
		entry.ZoneID.String(),
		entry.Origin.String(),
		[]byte(entry.Snapshot),
		entry.PrevHash,
	)
	if err != nil {
		return fmt.Errorf("audit append: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	const q = `SELECT ` + columns + ` FROM audit_entries ORDER BY seq DESC LIMIT $1`
	return s.query(ctx, q, limit)
}

// ByZone returns up to limit entries for the zone, newest first.
func (s *Store) ByZone(ctx context.Context, zone domain.ZoneID, limit int) ([]audit.Entry, error) {
	const q = `SELECT ` + columns + ` FROM audit_entries WHERE zone_id = $1 ORDER BY seq DESC LIMIT $2`
	return s.query(ctx, q, zone.String(), limit)
}

// ByTimeRange returns entries with from <= ts < to, in seq order.
func (s *Store) ByTimeRange(ctx context.Context, from, to time.Time) ([]audit.Entry, error) {
	const q = `SELECT ` + columns + ` FROM audit_entries WHERE ts >= $1 AND ts < $2 ORDER BY seq ASC`
	return s.query(ctx, q, from, to)
}

// BySubject returns entries for the subject, in seq order.
func (s *Store) BySubject(ctx context.Context, subjectID string) ([]audit.Entry, error) {
	const q = `SELECT ` + columns + ` FROM audit_entries WHERE subject_id = $1 ORDER BY seq ASC`
	return s.query(ctx, q, subjectID)
}

// ByOrigin returns entries originating from a classification, in seq order.
func (s *Store) ByOrigin(ctx context.Context, origin domain.ClassificationID) ([]audit.Entry, error) {
	const q = `SELECT ` + columns + ` FROM audit_entries WHERE origin_id = $1 ORDER BY seq ASC`
	return s.query(ctx, q, origin.String())
}

// Tail returns the highest-seq entry, or nil for an empty log.
func (s *Store) Tail(ctx context.Context) (*audit.Entry, error) {
	const q = `SELECT ` + columns + ` FROM audit_entries ORDER BY seq DESC LIMIT 1`
	entries, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit query: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			e        audit.Entry
			entryID  string
			subjType string
			zoneID   string
			originID string
			snapshot []byte
		)
		if err := rows.Scan(&e.Seq, &entryID, &e.Timestamp, &subjType, &e.SubjectID, &zoneID, &originID, &snapshot, &e.PrevHash); err != nil {
			return nil, fmt.Errorf("audit scan: %w", err)
		}
		e.ID = domain.AuditEntryID(entryID)
		e.SubjectType = audit.SubjectType(subjType)
		e.ZoneID = domain.ZoneID(zoneID)
		e.Origin = domain.ClassificationID(originID)
		e.Snapshot = snapshot
		// timestamptz comes back in the session timezone; a non-UTC offset
		// would change the entry's JSON and with it the chain hash.
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
