package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/team"
)

func TestDirectory_Membership(t *testing.T) {
	d := NewDirectory()
	ctx := context.Background()
	orgID := uuid.New()
	teamID := uuid.New()
	userID := uuid.New()

	d.AddTeam(team.Team{ID: teamID, OrganizationID: orgID, Name: "warehouse"})
	d.AddUser(orgID, userID)
	d.AddMember(teamID, userID)

	teams, err := d.TeamsForUser(ctx, orgID, userID)
	if err != nil {
		t.Fatalf("TeamsForUser(): %v", err)
	}
	if len(teams) != 1 || teams[0] != teamID {
		t.Errorf("TeamsForUser() = %v, want [%s]", teams, teamID)
	}

	member, err := d.IsMember(ctx, orgID, teamID, userID)
	if err != nil {
		t.Fatalf("IsMember(): %v", err)
	}
	if !member {
		t.Error("IsMember() = false, want true")
	}

	// Membership is invisible from a foreign organization.
	teams, _ = d.TeamsForUser(ctx, uuid.New(), userID)
	if len(teams) != 0 {
		t.Errorf("TeamsForUser() cross-org = %v, want empty", teams)
	}
	member, _ = d.IsMember(ctx, uuid.New(), teamID, userID)
	if member {
		t.Error("IsMember() cross-org = true, want false")
	}
}

func TestDirectory_ManagersForUser_Deduplicated(t *testing.T) {
	d := NewDirectory()
	ctx := context.Background()
	orgID := uuid.New()
	teamA := uuid.New()
	teamB := uuid.New()
	userID := uuid.New()
	managerID := uuid.New()

	// The same manager runs both of the user's teams.
	d.AddTeam(team.Team{ID: teamA, OrganizationID: orgID})
	d.AddTeam(team.Team{ID: teamB, OrganizationID: orgID})
	d.AddMember(teamA, userID)
	d.AddMember(teamB, userID)
	d.AddManager(teamA, managerID)
	d.AddManager(teamB, managerID)

	managers, err := d.ManagersForUser(ctx, orgID, userID)
	if err != nil {
		t.Fatalf("ManagersForUser(): %v", err)
	}
	if len(managers) != 1 || managers[0] != managerID {
		t.Errorf("ManagersForUser() = %v, want exactly [%s]", managers, managerID)
	}
}

func TestDirectory_ManagedTeams(t *testing.T) {
	d := NewDirectory()
	ctx := context.Background()
	orgID := uuid.New()
	teamID := uuid.New()
	managerID := uuid.New()

	d.AddTeam(team.Team{ID: teamID, OrganizationID: orgID, Name: "night shift"})
	d.AddManager(teamID, managerID)

	teams, err := d.ManagedTeams(ctx, orgID, managerID)
	if err != nil {
		t.Fatalf("ManagedTeams(): %v", err)
	}
	if len(teams) != 1 || teams[0].ID != teamID {
		t.Errorf("ManagedTeams() = %v, want [%s]", teams, teamID)
	}

	teams, _ = d.ManagedTeams(ctx, orgID, uuid.New())
	if len(teams) != 0 {
		t.Errorf("ManagedTeams() unknown manager = %v, want empty", teams)
	}
}

func TestDirectory_OrganizationChecks(t *testing.T) {
	d := NewDirectory()
	ctx := context.Background()
	orgID := uuid.New()
	teamID := uuid.New()
	userID := uuid.New()

	d.AddTeam(team.Team{ID: teamID, OrganizationID: orgID})
	d.AddUser(orgID, userID)

	if ok, _ := d.TeamInOrganization(ctx, orgID, teamID); !ok {
		t.Error("TeamInOrganization() = false, want true")
	}
	if ok, _ := d.TeamInOrganization(ctx, uuid.New(), teamID); ok {
		t.Error("TeamInOrganization() cross-org = true, want false")
	}
	if ok, _ := d.UserInOrganization(ctx, orgID, userID); !ok {
		t.Error("UserInOrganization() = false, want true")
	}
	if ok, _ := d.UserInOrganization(ctx, orgID, uuid.New()); ok {
		t.Error("UserInOrganization() unknown user = true, want false")
	}
}
