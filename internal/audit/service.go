package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"trackguard/pkg/domain"
	dErrors "trackguard/pkg/domain-errors"
)

// maxQueryLimit caps caller-supplied limits on the query surface.
const maxQueryLimit = 1000

// Service owns chain state (sequence counter and last hash) and exposes the
// query surface. Appends are serialized under one lock so sequence numbers
// and hash links are assigned atomically; concurrent writers are safe without
// read-modify-write races on stored entries.
type Service struct {
	store  Store
	logger *slog.Logger
	clock  func() time.Time

	mu       sync.Mutex
	lastHash string
	nextSeq  uint64
}

// NewService builds the audit service, recovering the chain tail from the
// store so restarts continue the existing chain.
func NewService(ctx context.Context, store Store, logger *slog.Logger) (*Service, error) {
	s := &Service{
		store:  store,
		logger: logger,
		// Timestamps are truncated to microseconds, the finest precision the
		// postgres store round-trips; a finer clock would change an entry's
		// hash between write and reload and break chain recovery.
		clock:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		lastHash: GenesisHash,
		nextSeq:  1,
	}

	tail, err := store.Tail(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: recover chain tail: %w", err)
	}
	if tail != nil {
		hash, err := tail.Hash()
		if err != nil {
			return nil, fmt.Errorf("audit: hash chain tail: %w", err)
		}
		s.lastHash = hash
		s.nextSeq = tail.Seq + 1
	}

	return s, nil
}

// Record appends a new entry for the given subject. The payload is
// snapshotted as JSON at append time so later mutation of the caller's value
// cannot alter the record. A store failure surfaces as CodeUnavailable and
// leaves the chain state untouched: the triggering request must not report
// success without its audit entry.
func (s *Service) Record(ctx context.Context, subjectType SubjectType, subjectID string, zone domain.ZoneID, origin domain.ClassificationID, payload any) (*Entry, error) {
	snapshot, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "snapshot audit payload", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		ID:          domain.NewAuditEntryID(),
		Seq:         s.nextSeq,
		Timestamp:   s.clock(),
		SubjectType: subjectType,
		SubjectID:   subjectID,
		ZoneID:      zone,
		Origin:      origin,
		Snapshot:    snapshot,
		PrevHash:    s.lastHash,
	}

	if err := s.store.Append(ctx, entry); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "audit append failed", err)
	}

	hash, err := entry.Hash()
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "hash audit entry", err)
	}
	s.lastHash = hash
	s.nextSeq++

	return &entry, nil
}

// Recent returns up to limit entries, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.store.Recent(ctx, clampLimit(limit))
}

// ByZone returns up to limit entries for a zone, newest first.
func (s *Service) ByZone(ctx context.Context, zone domain.ZoneID, limit int) ([]Entry, error) {
	return s.store.ByZone(ctx, zone, clampLimit(limit))
}

// ByTimeRange returns entries with from <= ts < to, in append order.
func (s *Service) ByTimeRange(ctx context.Context, from, to time.Time) ([]Entry, error) {
	return s.store.ByTimeRange(ctx, from, to)
}

// Trace reconstructs the full decision trail for a classification: the
// classification entry itself plus every alert transition that originated
// from it, in timestamp order. This is the explainability contract.
func (s *Service) Trace(ctx context.Context, id domain.ClassificationID) ([]Entry, error) {
	direct, err := s.store.BySubject(ctx, id.String())
	if err != nil {
		return nil, err
	}
	derived, err := s.store.ByOrigin(ctx, id)
	if err != nil {
		return nil, err
	}

	out := append(direct, derived...)
	if len(out) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no audit trail for classification")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Verify walks the whole chain and reports the first broken link. A nil
// return means every stored entry still hashes to its successor's prev_hash.
func (s *Service) Verify(ctx context.Context) error {
	entries, err := s.store.ByTimeRange(ctx, time.Time{}, s.clock().Add(time.Hour))
	if err != nil {
		return err
	}

	prev := GenesisHash
	for _, e := range entries {
		if e.PrevHash != prev {
			return fmt.Errorf("audit: chain broken at seq %d: prev_hash mismatch", e.Seq)
		}
		prev, err = e.Hash()
		if err != nil {
			return fmt.Errorf("audit: hash entry seq %d: %w", e.Seq, err)
		}
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}
