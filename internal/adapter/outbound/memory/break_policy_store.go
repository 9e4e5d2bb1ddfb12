package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// BreakPolicyStore implements policy.BreakPolicyStore with an in-memory map.
type BreakPolicyStore struct {
	mu       sync.RWMutex
	policies map[uuid.UUID]*policy.BreakPolicy
}

// NewBreakPolicyStore creates a new in-memory break policy store.
func NewBreakPolicyStore() *BreakPolicyStore {
	return &BreakPolicyStore{
		policies: make(map[uuid.UUID]*policy.BreakPolicy),
	}
}

// Create inserts a policy with its windows, enforcing active-scope uniqueness
// and the one-window-per-day invariant.
func (s *BreakPolicyStore) Create(_ context.Context, p *policy.BreakPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateWindowDays(p); err != nil {
		return err
	}
	if p.IsActive {
		for _, existing := range s.policies {
			if existing.OrganizationID == p.OrganizationID && existing.IsActive && sameScope(existing.TeamID, p.TeamID) && sameScope(existing.UserID, p.UserID) {
				return fmt.Errorf("%w: an active break policy already exists for this scope", policy.ErrConflict)
			}
		}
	}

	s.policies[p.ID] = copyBreakPolicy(p)
	return nil
}

// GetByID returns the policy with windows, or ErrNotFound.
func (s *BreakPolicyStore) GetByID(_ context.Context, orgID, id uuid.UUID) (*policy.BreakPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok || p.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: break policy %s", policy.ErrNotFound, id)
	}
	return copyBreakPolicy(p), nil
}

// List returns all break policies of the organization.
func (s *BreakPolicyStore) List(_ context.Context, orgID uuid.UUID) ([]policy.BreakPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []policy.BreakPolicy
	for _, p := range s.policies {
		if p.OrganizationID == orgID {
			out = append(out, *copyBreakPolicy(p))
		}
	}
	return out, nil
}

// Update replaces the stored policy and its windows wholesale.
func (s *BreakPolicyStore) Update(_ context.Context, p *policy.BreakPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.policies[p.ID]
	if !ok || existing.OrganizationID != p.OrganizationID {
		return fmt.Errorf("%w: break policy %s", policy.ErrNotFound, p.ID)
	}
	if err := validateWindowDays(p); err != nil {
		return err
	}
	s.policies[p.ID] = copyBreakPolicy(p)
	return nil
}

// Delete removes the policy and its windows.
func (s *BreakPolicyStore) Delete(_ context.Context, orgID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.policies[id]
	if !ok || existing.OrganizationID != orgID {
		return fmt.Errorf("%w: break policy %s", policy.ErrNotFound, id)
	}
	delete(s.policies, id)
	return nil
}

// FindActiveForUser returns the active policy scoped exactly to the user, or
// nil.
func (s *BreakPolicyStore) FindActiveForUser(_ context.Context, orgID, userID uuid.UUID) (*policy.BreakPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.policies {
		if p.OrganizationID == orgID && p.IsActive && p.UserID != nil && *p.UserID == userID {
			return copyBreakPolicy(p), nil
		}
	}
	return nil, nil
}

// FindActiveForTeams returns the most recently created active team-scoped
// policy among the given teams, or nil.
func (s *BreakPolicyStore) FindActiveForTeams(_ context.Context, orgID uuid.UUID, teamIDs []uuid.UUID) (*policy.BreakPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *policy.BreakPolicy
	for _, p := range s.policies {
		if p.OrganizationID != orgID || !p.IsActive || p.UserID != nil || p.TeamID == nil {
			continue
		}
		for _, teamID := range teamIDs {
			if *p.TeamID == teamID {
				if best == nil || p.CreatedAt.After(best.CreatedAt) {
					best = p
				}
				break
			}
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyBreakPolicy(best), nil
}

// FindActiveForOrganization returns the active organization-wide policy, or
// nil.
func (s *BreakPolicyStore) FindActiveForOrganization(_ context.Context, orgID uuid.UUID) (*policy.BreakPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.policies {
		if p.OrganizationID == orgID && p.IsActive && p.TeamID == nil && p.UserID == nil {
			return copyBreakPolicy(p), nil
		}
	}
	return nil, nil
}

// validateWindowDays enforces at most one window per day of week.
func validateWindowDays(p *policy.BreakPolicy) error {
	seen := make(map[int]bool, len(p.Windows))
	for i := range p.Windows {
		if seen[p.Windows[i].DayOfWeek] {
			return fmt.Errorf("%w: duplicate break window for day %d", policy.ErrConflict, p.Windows[i].DayOfWeek)
		}
		seen[p.Windows[i].DayOfWeek] = true
	}
	return nil
}

// copyBreakPolicy creates a deep copy of a break policy.
func copyBreakPolicy(p *policy.BreakPolicy) *policy.BreakPolicy {
	c := *p
	c.TeamID = copyID(p.TeamID)
	c.UserID = copyID(p.UserID)
	c.Windows = make([]policy.BreakWindow, len(p.Windows))
	copy(c.Windows, p.Windows)
	return &c
}

// Compile-time interface verification.
var _ policy.BreakPolicyStore = (*BreakPolicyStore)(nil)
