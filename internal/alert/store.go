package alert

import (
	"context"
	"time"

	"trackguard/pkg/domain"
)

// Store abstracts alert persistence. Implementations return (nil, nil) from
// Get when the alert does not exist; the service maps that to a domain error.
type Store interface {
	Create(ctx context.Context, a Alert) error
	Get(ctx context.Context, id domain.AlertID) (*Alert, error)
	Update(ctx context.Context, a Alert) error

	// OpenByZone returns active and acknowledged alerts for the zone,
	// newest first.
	OpenByZone(ctx context.Context, zone domain.ZoneID) ([]Alert, error)

	// Active returns all active alerts, newest first.
	Active(ctx context.Context) ([]Alert, error)

	// Recent returns up to limit alerts in any state, newest first.
	Recent(ctx context.Context, limit int) ([]Alert, error)

	// History returns up to limit alerts matching the query, newest first.
	// Empty query fields match everything.
	History(ctx context.Context, q HistoryQuery, limit int) ([]Alert, error)

	// CountCreatedSince counts alerts created at or after since, optionally
	// restricted to one zone (empty zone means all zones).
	CountCreatedSince(ctx context.Context, zone domain.ZoneID, since time.Time) (int, error)

	// LastCreatedAt returns the creation time of the newest alert for the
	// zone, or nil when the zone has never alerted.
	LastCreatedAt(ctx context.Context, zone domain.ZoneID) (*time.Time, error)
}
