// Package memory provides in-memory store implementations. Thread-safe for
// concurrent access; intended for development and testing.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// RestrictionStore implements policy.RestrictionStore with an in-memory map.
type RestrictionStore struct {
	mu           sync.RWMutex
	restrictions map[uuid.UUID]*policy.ClockRestriction
}

// NewRestrictionStore creates a new in-memory restriction store.
func NewRestrictionStore() *RestrictionStore {
	return &RestrictionStore{
		restrictions: make(map[uuid.UUID]*policy.ClockRestriction),
	}
}

// Create inserts a restriction, enforcing active-scope uniqueness.
func (s *RestrictionStore) Create(_ context.Context, r *policy.ClockRestriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.IsActive {
		for _, existing := range s.restrictions {
			if existing.OrganizationID == r.OrganizationID && existing.IsActive && sameScope(existing.TeamID, r.TeamID) && sameScope(existing.UserID, r.UserID) {
				return fmt.Errorf("%w: an active restriction already exists for this scope", policy.ErrConflict)
			}
		}
	}

	s.restrictions[r.ID] = copyRestriction(r)
	return nil
}

// GetByID returns the restriction, or ErrNotFound.
func (s *RestrictionStore) GetByID(_ context.Context, orgID, id uuid.UUID) (*policy.ClockRestriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.restrictions[id]
	if !ok || r.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: restriction %s", policy.ErrNotFound, id)
	}
	return copyRestriction(r), nil
}

// List returns all restrictions of the organization.
func (s *RestrictionStore) List(_ context.Context, orgID uuid.UUID) ([]policy.ClockRestriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []policy.ClockRestriction
	for _, r := range s.restrictions {
		if r.OrganizationID == orgID {
			out = append(out, *copyRestriction(r))
		}
	}
	return out, nil
}

// Update replaces the stored restriction, enforcing active-scope uniqueness
// so a reactivated restriction cannot join an already active one.
func (s *RestrictionStore) Update(_ context.Context, r *policy.ClockRestriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.restrictions[r.ID]
	if !ok || existing.OrganizationID != r.OrganizationID {
		return fmt.Errorf("%w: restriction %s", policy.ErrNotFound, r.ID)
	}
	if r.IsActive {
		for _, other := range s.restrictions {
			if other.ID == r.ID {
				continue
			}
			if other.OrganizationID == r.OrganizationID && other.IsActive && sameScope(other.TeamID, r.TeamID) && sameScope(other.UserID, r.UserID) {
				return fmt.Errorf("%w: an active restriction already exists for this scope", policy.ErrConflict)
			}
		}
	}
	s.restrictions[r.ID] = copyRestriction(r)
	return nil
}

// Delete removes the restriction.
func (s *RestrictionStore) Delete(_ context.Context, orgID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.restrictions[id]
	if !ok || existing.OrganizationID != orgID {
		return fmt.Errorf("%w: restriction %s", policy.ErrNotFound, id)
	}
	delete(s.restrictions, id)
	return nil
}

// FindActiveForUser returns the active restriction scoped exactly to the
// user, or nil.
func (s *RestrictionStore) FindActiveForUser(_ context.Context, orgID, userID uuid.UUID) (*policy.ClockRestriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.restrictions {
		if r.OrganizationID == orgID && r.IsActive && r.UserID != nil && *r.UserID == userID {
			return copyRestriction(r), nil
		}
	}
	return nil, nil
}

// FindActiveForTeams returns the most recently created active team-scoped
// restriction among the given teams, or nil.
func (s *RestrictionStore) FindActiveForTeams(_ context.Context, orgID uuid.UUID, teamIDs []uuid.UUID) (*policy.ClockRestriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *policy.ClockRestriction
	for _, r := range s.restrictions {
		if r.OrganizationID != orgID || !r.IsActive || r.UserID != nil || r.TeamID == nil {
			continue
		}
		for _, teamID := range teamIDs {
			if *r.TeamID == teamID {
				if best == nil || r.CreatedAt.After(best.CreatedAt) {
					best = r
				}
				break
			}
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyRestriction(best), nil
}

// FindActiveForOrganization returns the active organization-wide restriction,
// or nil.
func (s *RestrictionStore) FindActiveForOrganization(_ context.Context, orgID uuid.UUID) (*policy.ClockRestriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.restrictions {
		if r.OrganizationID == orgID && r.IsActive && r.TeamID == nil && r.UserID == nil {
			return copyRestriction(r), nil
		}
	}
	return nil, nil
}

// sameScope compares two optional scope ids.
func sameScope(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// copyRestriction creates a deep copy of a restriction.
func copyRestriction(r *policy.ClockRestriction) *policy.ClockRestriction {
	c := *r
	c.TeamID = copyID(r.TeamID)
	c.UserID = copyID(r.UserID)
	c.ClockInEarliest = copyTime(r.ClockInEarliest)
	c.ClockInLatest = copyTime(r.ClockInLatest)
	c.ClockOutEarliest = copyTime(r.ClockOutEarliest)
	c.ClockOutLatest = copyTime(r.ClockOutLatest)
	if r.MaxDailyClockEvents != nil {
		v := *r.MaxDailyClockEvents
		c.MaxDailyClockEvents = &v
	}
	return &c
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyTime(t *policy.TimeOfDay) *policy.TimeOfDay {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Compile-time interface verification.
var _ policy.RestrictionStore = (*RestrictionStore)(nil)
