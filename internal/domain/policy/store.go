package policy

import (
	"context"

	"github.com/google/uuid"
)

// RestrictionStore persists clock restrictions. Every query is organization
// scoped; an id outside the caller's organization behaves exactly like a
// missing id.
//
// The Find* methods back the resolver cascade. They return (nil, nil) when no
// matching active policy exists; store failures are wrapped in ErrStore.
type RestrictionStore interface {
	// Create inserts a restriction. Returns ErrConflict when an active
	// restriction already exists for the identical (org, team, user) scope
	// tuple.
	Create(ctx context.Context, r *ClockRestriction) error

	// GetByID returns the restriction, or ErrNotFound.
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*ClockRestriction, error)

	// List returns all restrictions of the organization.
	List(ctx context.Context, orgID uuid.UUID) ([]ClockRestriction, error)

	// Update replaces the stored restriction's forward-looking fields.
	// Returns ErrNotFound when the id is unknown within the organization.
	Update(ctx context.Context, r *ClockRestriction) error

	// Delete removes the restriction. Historical override requests that
	// reference it indirectly are untouched. Returns ErrNotFound when the id
	// is unknown within the organization.
	Delete(ctx context.Context, orgID, id uuid.UUID) error

	// FindActiveForUser returns the active restriction scoped exactly to the
	// user, or nil.
	FindActiveForUser(ctx context.Context, orgID, userID uuid.UUID) (*ClockRestriction, error)

	// FindActiveForTeams returns the most recently created active restriction
	// scoped to any of the given teams with no user scope, or nil.
	FindActiveForTeams(ctx context.Context, orgID uuid.UUID, teamIDs []uuid.UUID) (*ClockRestriction, error)

	// FindActiveForOrganization returns the active organization-wide
	// restriction (no team, no user scope), or nil.
	FindActiveForOrganization(ctx context.Context, orgID uuid.UUID) (*ClockRestriction, error)
}

// BreakPolicyStore persists break policies and their windows. Scoping and
// error contracts match RestrictionStore.
type BreakPolicyStore interface {
	// Create inserts a policy with its windows. Returns ErrConflict when an
	// active policy already exists for the identical scope tuple, or when the
	// policy carries two windows for the same day of week.
	Create(ctx context.Context, p *BreakPolicy) error

	// GetByID returns the policy with windows loaded, or ErrNotFound.
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*BreakPolicy, error)

	// List returns all break policies of the organization, windows loaded.
	List(ctx context.Context, orgID uuid.UUID) ([]BreakPolicy, error)

	// Update replaces the stored policy and its windows wholesale.
	Update(ctx context.Context, p *BreakPolicy) error

	// Delete removes the policy and cascades to its windows only.
	Delete(ctx context.Context, orgID, id uuid.UUID) error

	// FindActiveForUser returns the active policy scoped exactly to the user,
	// or nil.
	FindActiveForUser(ctx context.Context, orgID, userID uuid.UUID) (*BreakPolicy, error)

	// FindActiveForTeams returns the most recently created active policy
	// scoped to any of the given teams with no user scope, or nil.
	FindActiveForTeams(ctx context.Context, orgID uuid.UUID, teamIDs []uuid.UUID) (*BreakPolicy, error)

	// FindActiveForOrganization returns the active organization-wide policy,
	// or nil.
	FindActiveForOrganization(ctx context.Context, orgID uuid.UUID) (*BreakPolicy, error)
}
