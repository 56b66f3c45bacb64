// Package memory provides an in-memory alert store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"trackguard/internal/alert"
	"trackguard/pkg/domain"
)

// InMemoryStore keeps alerts in a map guarded by a RWMutex, with insertion
// order tracked separately so "newest first" queries are deterministic.
type InMemoryStore struct {
	mu     sync.RWMutex
	alerts map[domain.AlertID]alert.Alert
	order  []domain.AlertID
}

// NewInMemoryStore creates an empty in-memory alert store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{alerts: make(map[domain.AlertID]alert.Alert)}
}

// Create stores a new alert.
func (s *InMemoryStore) Create(_ context.Context, a alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
	s.order = append(s.order, a.ID)
	return nil
}

// Get returns the alert, or nil when it does not exist.
func (s *InMemoryStore) Get(_ context.Context, id domain.AlertID) (*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// Update replaces a stored alert.
func (s *InMemoryStore) Update(_ context.Context, a alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
	return nil
}

// OpenByZone returns active and acknowledged alerts for the zone, newest first.
func (s *InMemoryStore) OpenByZone(_ context.Context, zone domain.ZoneID) ([]alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []alert.Alert
	for i := len(s.order) - 1; i >= 0; i-- {
		a := s.alerts[s.order[i]]
		if a.ZoneID == zone && a.Open() {
			out = append(out, a)
		}
	}
	return out, nil
}

// Active returns all active alerts, newest first.
func (s *InMemoryStore) Active(_ context.Context) ([]alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []alert.Alert
	for i := len(s.order) - 1; i >= 0; i-- {
		a := s.alerts[s.order[i]]
		if a.Status == alert.StatusActive {
			out = append(out, a)
		}
	}
	return out, nil
}

// Recent returns up to limit alerts, newest first.
func (s *InMemoryStore) Recent(_ context.Context, limit int) ([]alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []alert.Alert
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.alerts[s.order[i]])
	}
	return out, nil
}

// History returns up to limit alerts matching the query, newest first.
func (s *InMemoryStore) History(_ context.Context, q alert.HistoryQuery, limit int) ([]alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []alert.Alert
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		if a := s.alerts[s.order[i]]; q.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// CountCreatedSince counts alerts created at or after since; empty zone
// matches all zones.
func (s *InMemoryStore) CountCreatedSince(_ context.Context, zone domain.ZoneID, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, id := range s.order {
		a := s.alerts[id]
		if (zone == "" || a.ZoneID == zone) && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// LastCreatedAt returns the newest creation time for the zone, or nil.
func (s *InMemoryStore) LastCreatedAt(_ context.Context, zone domain.ZoneID) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		a := s.alerts[s.order[i]]
		if a.ZoneID == zone {
			t := a.CreatedAt
			return &t, nil
		}
	}
	return nil, nil
}
