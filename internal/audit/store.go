package audit

import (
	"context"
	"time"

	"trackguard/pkg/domain"
)

// Store is the logical persistence contract the audit log requires:
// append-only writes plus the query dimensions the compliance surface needs.
// Implementations must never mutate or remove a stored entry.
type Store interface {
	// Append persists a new entry. Seq values arrive strictly increasing.
	Append(ctx context.Context, entry Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// ByZone returns up to limit entries for a zone, newest first.
	ByZone(ctx context.Context, zone domain.ZoneID, limit int) ([]Entry, error)

	// ByTimeRange returns entries with from <= timestamp < to, in seq order.
	ByTimeRange(ctx context.Context, from, to time.Time) ([]Entry, error)

	// BySubject returns entries whose subject ID matches, in seq order.
	BySubject(ctx context.Context, subjectID string) ([]Entry, error)

	// ByOrigin returns entries originating from a classification, in seq order.
	ByOrigin(ctx context.Context, origin domain.ClassificationID) ([]Entry, error)

	// Tail returns the highest-seq entry, or nil for an empty log.
	Tail(ctx context.Context) (*Entry, error)
}
