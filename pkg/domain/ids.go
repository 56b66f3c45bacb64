// Package domain holds typed identifiers shared across services.
//
// IDs are opaque to callers but sortable by creation order: generated IDs
// embed a UUIDv7, so lexicographic order matches creation order within a
// process and closely approximates it across processes.
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	dErrors "trackguard/pkg/domain-errors"
)

// ZoneID identifies a monitored track segment. Zones are configured
// externally; the service treats the value as a stable opaque key.
type ZoneID string

// IsNil returns true if the zone ID is empty.
func (z ZoneID) IsNil() bool { return z == "" }

// String returns the string representation of the zone ID.
func (z ZoneID) String() string { return string(z) }

// ParseZoneID validates a zone identifier from an untrusted source.
func ParseZoneID(s string) (ZoneID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "zone_id is required")
	}
	return ZoneID(s), nil
}

// ClassificationID identifies an immutable classification fact.
type ClassificationID string

// IsNil returns true if the classification ID is empty.
func (c ClassificationID) IsNil() bool { return c == "" }

// String returns the string representation of the classification ID.
func (c ClassificationID) String() string { return string(c) }

// AlertID identifies a tracked alert.
type AlertID string

// IsNil returns true if the alert ID is empty.
func (a AlertID) IsNil() bool { return a == "" }

// String returns the string representation of the alert ID.
func (a AlertID) String() string { return string(a) }

// AuditEntryID identifies a single audit log entry.
type AuditEntryID string

// String returns the string representation of the audit entry ID.
func (a AuditEntryID) String() string { return string(a) }

// NewClassificationID mints a creation-ordered classification ID.
func NewClassificationID() ClassificationID {
	return ClassificationID(prefixed("cls"))
}

// NewAlertID mints a creation-ordered alert ID.
func NewAlertID() AlertID {
	return AlertID(prefixed("alert"))
}

// NewAuditEntryID mints a creation-ordered audit entry ID.
func NewAuditEntryID() AuditEntryID {
	return AuditEntryID(prefixed("audit"))
}

func prefixed(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.Must(uuid.NewV7()).String())
}
