package override

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// ListFilter narrows Store.List results. Zero values mean "no filter".
type ListFilter struct {
	UserID *uuid.UUID
	Status Status
}

// Store persists override requests. Every query is organization scoped; an id
// outside the caller's organization behaves exactly like a missing id.
type Store interface {
	// Create inserts a request. The check for an existing pending request for
	// the same user and action and the insert happen as one atomic
	// test-and-set; a duplicate surfaces as ErrConflict.
	Create(ctx context.Context, r *Request) error

	// GetByID returns the request, or ErrNotFound.
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Request, error)

	// List returns the organization's requests matching the filter, newest
	// first.
	List(ctx context.Context, orgID uuid.UUID, f ListFilter) ([]Request, error)

	// Update replaces the stored request.
	Update(ctx context.Context, r *Request) error

	// FindPending returns the user's pending request for the action, or nil.
	FindPending(ctx context.Context, orgID, userID uuid.UUID, action policy.ClockAction) (*Request, error)

	// FindConsumable returns the newest approved or auto-approved request for
	// the user and action that is still unconsumed and was created after the
	// given instant, or nil. The freshness cut-off is applied at query time
	// only; stored status never expires.
	FindConsumable(ctx context.Context, orgID, userID uuid.UUID, action policy.ClockAction, createdAfter time.Time) (*Request, error)
}
