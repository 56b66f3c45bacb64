// Package audit maintains the append-only, tamper-evident record of every
// classification and alert transition. Entries are hash-chained: each one
// carries the SHA-256 of the previous entry's canonical JSON, so any
// after-the-fact edit breaks the chain and is detectable by Verify.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"trackguard/pkg/domain"
)

// SubjectType classifies what an entry records.
type SubjectType string

const (
	// SubjectClassification snapshots a completed fusion result.
	SubjectClassification SubjectType = "CLASSIFICATION"
	// SubjectAlertTransition snapshots an alert lifecycle transition.
	SubjectAlertTransition SubjectType = "ALERT_TRANSITION"
)

// GenesisHash is the prev_hash of the first entry in a new log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one write-once audit record. All fields are structs and scalars
// (no map[string]any) so json.Marshal field order is deterministic and the
// chain hash is reproducible.
type Entry struct {
	ID          domain.AuditEntryID     `json:"entry_id"`
	Seq         uint64                  `json:"seq"`
	Timestamp   time.Time               `json:"timestamp"`
	SubjectType SubjectType             `json:"subject_type"`
	SubjectID   string                  `json:"subject_id"`
	ZoneID      domain.ZoneID           `json:"zone_id"`
	Origin      domain.ClassificationID `json:"origin_classification_id,omitempty"`
	Snapshot    json.RawMessage         `json:"payload_snapshot"`
	PrevHash    string                  `json:"prev_hash"`
}

// Hash returns "sha256:<hex>" of the entry's canonical JSON, including its
// PrevHash, forming the chain link for the next entry.
func (e Entry) Hash() (string, error) {
	line, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
