package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/breaks"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// BreakEntryStore implements breaks.Store with an in-memory map. The open
// check and the insert run under one lock, enforcing the single-open-break
// invariant atomically.
type BreakEntryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*breaks.Entry
}

// NewBreakEntryStore creates a new in-memory break entry store.
func NewBreakEntryStore() *BreakEntryStore {
	return &BreakEntryStore{
		entries: make(map[uuid.UUID]*breaks.Entry),
	}
}

// Create inserts an entry, rejecting a second open break for the user.
func (s *BreakEntryStore) Create(_ context.Context, e *breaks.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entries {
		if existing.OrganizationID == e.OrganizationID && existing.UserID == e.UserID && existing.Open() {
			return fmt.Errorf("%w: user already has an open break", policy.ErrConflict)
		}
	}

	s.entries[e.ID] = copyEntry(e)
	return nil
}

// GetByID returns the entry, or ErrNotFound.
func (s *BreakEntryStore) GetByID(_ context.Context, orgID, id uuid.UUID) (*breaks.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: break entry %s", policy.ErrNotFound, id)
	}
	return copyEntry(e), nil
}

// FindOpen returns the user's open entry, or nil.
func (s *BreakEntryStore) FindOpen(_ context.Context, orgID, userID uuid.UUID) (*breaks.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.OrganizationID == orgID && e.UserID == userID && e.Open() {
			return copyEntry(e), nil
		}
	}
	return nil, nil
}

// Update replaces the stored entry.
func (s *BreakEntryStore) Update(_ context.Context, e *breaks.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[e.ID]
	if !ok || existing.OrganizationID != e.OrganizationID {
		return fmt.Errorf("%w: break entry %s", policy.ErrNotFound, e.ID)
	}
	s.entries[e.ID] = copyEntry(e)
	return nil
}

// ListForClockEntry returns the entries linked to the clock entry, oldest
// first.
func (s *BreakEntryStore) ListForClockEntry(_ context.Context, orgID, clockEntryID uuid.UUID) ([]breaks.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []breaks.Entry
	for _, e := range s.entries {
		if e.OrganizationID == orgID && e.ClockEntryID == clockEntryID {
			out = append(out, *copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BreakStart.Before(out[j].BreakStart)
	})
	return out, nil
}

// copyEntry creates a deep copy of an entry.
func copyEntry(e *breaks.Entry) *breaks.Entry {
	c := *e
	if e.BreakEnd != nil {
		v := *e.BreakEnd
		c.BreakEnd = &v
	}
	if e.DurationMinutes != nil {
		v := *e.DurationMinutes
		c.DurationMinutes = &v
	}
	return &c
}

// Compile-time interface verification.
var _ breaks.Store = (*BreakEntryStore)(nil)
