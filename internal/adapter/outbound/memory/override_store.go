package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/override"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// OverrideStore implements override.Store with an in-memory map. The
// duplicate-pending check and the insert run under one lock, giving the
// atomic test-and-set the engine requires.
type OverrideStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*override.Request
}

// NewOverrideStore creates a new in-memory override request store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{
		requests: make(map[uuid.UUID]*override.Request),
	}
}

// Create inserts a request, rejecting a duplicate pending request for the
// same user and action.
func (s *OverrideStore) Create(_ context.Context, r *override.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.requests {
		if existing.OrganizationID == r.OrganizationID &&
			existing.UserID == r.UserID &&
			existing.RequestedAction == r.RequestedAction &&
			existing.Status == override.StatusPending {
			return fmt.Errorf("%w: a pending %s override request already exists", policy.ErrConflict, r.RequestedAction)
		}
	}

	s.requests[r.ID] = copyRequest(r)
	return nil
}

// GetByID returns the request, or ErrNotFound.
func (s *OverrideStore) GetByID(_ context.Context, orgID, id uuid.UUID) (*override.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok || r.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: override request %s", policy.ErrNotFound, id)
	}
	return copyRequest(r), nil
}

// List returns the organization's requests matching the filter, newest first.
func (s *OverrideStore) List(_ context.Context, orgID uuid.UUID, f override.ListFilter) ([]override.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []override.Request
	for _, r := range s.requests {
		if r.OrganizationID != orgID {
			continue
		}
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, *copyRequest(r))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update replaces the stored request.
func (s *OverrideStore) Update(_ context.Context, r *override.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.requests[r.ID]
	if !ok || existing.OrganizationID != r.OrganizationID {
		return fmt.Errorf("%w: override request %s", policy.ErrNotFound, r.ID)
	}
	s.requests[r.ID] = copyRequest(r)
	return nil
}

// FindPending returns the user's pending request for the action, or nil.
func (s *OverrideStore) FindPending(_ context.Context, orgID, userID uuid.UUID, action policy.ClockAction) (*override.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.requests {
		if r.OrganizationID == orgID && r.UserID == userID && r.RequestedAction == action && r.Status == override.StatusPending {
			return copyRequest(r), nil
		}
	}
	return nil, nil
}

// FindConsumable returns the newest unconsumed approved request created after
// the cut-off, or nil.
func (s *OverrideStore) FindConsumable(_ context.Context, orgID, userID uuid.UUID, action policy.ClockAction, createdAfter time.Time) (*override.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *override.Request
	for _, r := range s.requests {
		if r.OrganizationID != orgID || r.UserID != userID || r.RequestedAction != action {
			continue
		}
		if !r.Status.ApprovedState() || r.Consumed() || !r.CreatedAt.After(createdAfter) {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyRequest(best), nil
}

// copyRequest creates a deep copy of a request.
func copyRequest(r *override.Request) *override.Request {
	c := *r
	c.ClockEntryID = copyID(r.ClockEntryID)
	c.ReviewedBy = copyID(r.ReviewedBy)
	if r.ReviewedAt != nil {
		v := *r.ReviewedAt
		c.ReviewedAt = &v
	}
	return &c
}

// Compile-time interface verification.
var _ override.Store = (*OverrideStore)(nil)
