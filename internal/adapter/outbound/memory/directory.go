package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/team"
)

// Directory is a seedable in-memory team.Directory. Production deployments
// wrap the system that owns org structure; this one backs tests and the
// embedded backends.
type Directory struct {
	mu       sync.RWMutex
	teams    map[uuid.UUID]team.Team
	members  map[uuid.UUID]map[uuid.UUID]struct{} // teamID -> userIDs
	managers map[uuid.UUID]map[uuid.UUID]struct{} // teamID -> managerIDs
	users    map[uuid.UUID]uuid.UUID              // userID -> orgID
}

// NewDirectory creates an empty in-memory directory.
func NewDirectory() *Directory {
	return &Directory{
		teams:    make(map[uuid.UUID]team.Team),
		members:  make(map[uuid.UUID]map[uuid.UUID]struct{}),
		managers: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		users:    make(map[uuid.UUID]uuid.UUID),
	}
}

// AddTeam registers a team.
func (d *Directory) AddTeam(t team.Team) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teams[t.ID] = t
}

// AddUser registers a user in an organization.
func (d *Directory) AddUser(orgID, userID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[userID] = orgID
}

// AddMember registers a user as a member of a team.
func (d *Directory) AddMember(teamID, userID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.members[teamID] == nil {
		d.members[teamID] = make(map[uuid.UUID]struct{})
	}
	d.members[teamID][userID] = struct{}{}
}

// AddManager registers a user as a manager of a team.
func (d *Directory) AddManager(teamID, managerID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.managers[teamID] == nil {
		d.managers[teamID] = make(map[uuid.UUID]struct{})
	}
	d.managers[teamID][managerID] = struct{}{}
}

// TeamsForUser returns the ids of the teams the user belongs to.
func (d *Directory) TeamsForUser(_ context.Context, orgID, userID uuid.UUID) ([]uuid.UUID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []uuid.UUID
	for teamID, users := range d.members {
		t, ok := d.teams[teamID]
		if !ok || t.OrganizationID != orgID {
			continue
		}
		if _, ok := users[userID]; ok {
			out = append(out, teamID)
		}
	}
	sortIDs(out)
	return out, nil
}

// ManagedTeams returns the teams the given user manages.
func (d *Directory) ManagedTeams(_ context.Context, orgID, managerID uuid.UUID) ([]team.Team, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []team.Team
	for teamID, mgrs := range d.managers {
		t, ok := d.teams[teamID]
		if !ok || t.OrganizationID != orgID {
			continue
		}
		if _, ok := mgrs[managerID]; ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// IsMember reports whether the user belongs to the team.
func (d *Directory) IsMember(_ context.Context, orgID, teamID, userID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.teams[teamID]
	if !ok || t.OrganizationID != orgID {
		return false, nil
	}
	_, ok = d.members[teamID][userID]
	return ok, nil
}

// ManagersForUser returns the deduplicated manager ids across the user's
// teams.
func (d *Directory) ManagersForUser(_ context.Context, orgID, userID uuid.UUID) ([]uuid.UUID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for teamID, users := range d.members {
		t, ok := d.teams[teamID]
		if !ok || t.OrganizationID != orgID {
			continue
		}
		if _, ok := users[userID]; !ok {
			continue
		}
		for mgrID := range d.managers[teamID] {
			if _, dup := seen[mgrID]; dup {
				continue
			}
			seen[mgrID] = struct{}{}
			out = append(out, mgrID)
		}
	}
	sortIDs(out)
	return out, nil
}

// TeamInOrganization reports whether the team belongs to the organization.
func (d *Directory) TeamInOrganization(_ context.Context, orgID, teamID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.teams[teamID]
	return ok && t.OrganizationID == orgID, nil
}

// UserInOrganization reports whether the user belongs to the organization.
func (d *Directory) UserInOrganization(_ context.Context, orgID, userID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	got, ok := d.users[userID]
	return ok && got == orgID, nil
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}

// Compile-time interface verification.
var _ team.Directory = (*Directory)(nil)
