// Package team contains the team membership port consumed by the resolver
// cascade and the override review gate. Team provisioning itself lives
// outside the engine.
package team

import (
	"context"

	"github.com/google/uuid"
)

// Role is the reviewer privilege level used by the override workflow.
type Role string

const (
	// RoleEmployee has no review privileges.
	RoleEmployee Role = "employee"
	// RoleManager may review requests from users in teams they manage.
	RoleManager Role = "manager"
	// RoleAdmin may review any request in the organization.
	RoleAdmin Role = "admin"
)

// AtLeastManager reports whether the role carries review privileges.
func (r Role) AtLeastManager() bool {
	return r == RoleManager || r == RoleAdmin
}

// Team is a minimal view of a team as the engine needs it.
type Team struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
}

// Directory answers team membership and management questions. Implementations
// wrap whatever system owns org structure.
type Directory interface {
	// TeamsForUser returns the ids of the teams the user belongs to.
	TeamsForUser(ctx context.Context, orgID, userID uuid.UUID) ([]uuid.UUID, error)

	// ManagedTeams returns the teams the given user manages.
	ManagedTeams(ctx context.Context, orgID, managerID uuid.UUID) ([]Team, error)

	// IsMember reports whether the user belongs to the team.
	IsMember(ctx context.Context, orgID, teamID, userID uuid.UUID) (bool, error)

	// ManagersForUser returns the ids of the managers of every team the user
	// belongs to, deduplicated.
	ManagersForUser(ctx context.Context, orgID, userID uuid.UUID) ([]uuid.UUID, error)

	// TeamInOrganization reports whether the team belongs to the
	// organization. Policy creation uses this to reject foreign scopes.
	TeamInOrganization(ctx context.Context, orgID, teamID uuid.UUID) (bool, error)

	// UserInOrganization reports whether the user belongs to the
	// organization.
	UserInOrganization(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}
