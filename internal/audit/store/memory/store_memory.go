// Package memory implements the audit store contract in process memory.
// Suitable for single-node deployments and tests; durable deployments use
// the postgres store.
package memory

import (
	"context"
	"sync"
	"time"

	"trackguard/internal/audit"
	"trackguard/pkg/domain"
)

// InMemoryStore keeps entries in an append-only slice guarded by an RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append adds an entry. Prior entries are never touched.
func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *InMemoryStore) Recent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit > n {
		limit = n
	}
	out := make([]audit.Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// ByZone returns up to limit entries for the zone, newest first.
func (s *InMemoryStore) ByZone(_ context.Context, zone domain.ZoneID, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].ZoneID == zone {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

// ByTimeRange returns entries with from <= ts < to, in seq order.
func (s *InMemoryStore) ByTimeRange(_ context.Context, from, to time.Time) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for _, e := range s.entries {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// BySubject returns entries for a subject ID, in seq order.
func (s *InMemoryStore) BySubject(_ context.Context, subjectID string) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for _, e := range s.entries {
		if e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ByOrigin returns entries originating from a classification, in seq order.
func (s *InMemoryStore) ByOrigin(_ context.Context, origin domain.ClassificationID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for _, e := range s.entries {
		if e.Origin == origin {
			out = append(out, e)
		}
	}
	return out, nil
}

// Tail returns the last entry, or nil for an empty log.
func (s *InMemoryStore) Tail(_ context.Context) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}
	tail := s.entries[len(s.entries)-1]
	return &tail, nil
}
