package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

func TestResolveRestriction_UserBeatsTeamAndOrg(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	env.seedRestriction(restrictionSeed{mode: policy.ModeStrict, createdAt: base})
	env.seedRestriction(restrictionSeed{teamID: &env.teamID, mode: policy.ModeFlexible, createdAt: base})
	userScoped := env.seedRestriction(restrictionSeed{userID: &env.userID, mode: policy.ModeUnrestricted, createdAt: base})

	effective, err := env.resolver.ResolveRestriction(ctx, env.orgID, env.userID)
	if err != nil {
		t.Fatalf("ResolveRestriction() unexpected error: %v", err)
	}
	if effective == nil {
		t.Fatal("ResolveRestriction() returned nil, want user-scoped restriction")
	}
	if effective.Source != policy.SourceUser {
		t.Errorf("Source = %s, want %s", effective.Source, policy.SourceUser)
	}
	if effective.Restriction.ID != userScoped.ID {
		t.Errorf("Restriction.ID = %s, want %s", effective.Restriction.ID, userScoped.ID)
	}
}

func TestResolveRestriction_TeamBeatsOrg(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	env.seedRestriction(restrictionSeed{mode: policy.ModeStrict, createdAt: base})
	teamScoped := env.seedRestriction(restrictionSeed{teamID: &env.teamID, mode: policy.ModeFlexible, createdAt: base})

	effective, err := env.resolver.ResolveRestriction(ctx, env.orgID, env.userID)
	if err != nil {
		t.Fatalf("ResolveRestriction() unexpected error: %v", err)
	}
	if effective == nil || effective.Source != policy.SourceTeam {
		t.Fatalf("effective = %+v, want team-scoped", effective)
	}
	if effective.Restriction.ID != teamScoped.ID {
		t.Errorf("Restriction.ID = %s, want %s", effective.Restriction.ID, teamScoped.ID)
	}
}

func TestResolveRestriction_FallsThroughToOrg(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	orgScoped := env.seedRestriction(restrictionSeed{mode: policy.ModeStrict, createdAt: time.Now()})

	effective, err := env.resolver.ResolveRestriction(ctx, env.orgID, env.userID)
	if err != nil {
		t.Fatalf("ResolveRestriction() unexpected error: %v", err)
	}
	if effective == nil || effective.Source != policy.SourceOrganization {
		t.Fatalf("effective = %+v, want organization-scoped", effective)
	}
	if effective.Restriction.ID != orgScoped.ID {
		t.Errorf("Restriction.ID = %s, want %s", effective.Restriction.ID, orgScoped.ID)
	}
}

func TestResolveRestriction_NoneApplies(t *testing.T) {
	env := newTestEnv()

	effective, err := env.resolver.ResolveRestriction(context.Background(), env.orgID, env.userID)
	if err != nil {
		t.Fatalf("ResolveRestriction() unexpected error: %v", err)
	}
	if effective != nil {
		t.Errorf("effective = %+v, want nil", effective)
	}
}

func TestResolveRestriction_OtherUserScopeIgnored(t *testing.T) {
	env := newTestEnv()
	otherUser := uuid.New()
	env.directory.AddUser(env.orgID, otherUser)
	env.seedRestriction(restrictionSeed{userID: &otherUser, mode: policy.ModeStrict, createdAt: time.Now()})

	effective, err := env.resolver.ResolveRestriction(context.Background(), env.orgID, env.userID)
	if err != nil {
		t.Fatalf("ResolveRestriction() unexpected error: %v", err)
	}
	if effective != nil {
		t.Errorf("effective = %+v, want nil; another user's restriction must not apply", effective)
	}
}

func TestResolveRestriction_NewestTeamRestrictionWins(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// The user belongs to a second team with its own restriction; the most
	// recently created one wins the tie.
	secondTeam := uuid.New()
	env.directory.AddTeam(teamFixture(secondTeam, env.orgID))
	env.directory.AddMember(secondTeam, env.userID)

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	env.seedRestriction(restrictionSeed{teamID: &env.teamID, mode: policy.ModeStrict, createdAt: older})
	newest := env.seedRestriction(restrictionSeed{teamID: &secondTeam, mode: policy.ModeFlexible, createdAt: newer})

	effective, err := env.resolver.ResolveRestriction(ctx, env.orgID, env.userID)
	if err != nil {
		t.Fatalf("ResolveRestriction() unexpected error: %v", err)
	}
	if effective == nil || effective.Restriction.ID != newest.ID {
		t.Fatalf("effective = %+v, want newest team restriction %s", effective, newest.ID)
	}
}

func TestResolveBreakPolicy_Cascade(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	orgPolicy := &policy.BreakPolicy{
		ID:             uuid.New(),
		OrganizationID: env.orgID,
		Name:           "org default",
		TrackingMode:   policy.TrackAutoDeduct,
		IsActive:       true,
	}
	if err := env.breakPolicies.Create(ctx, orgPolicy); err != nil {
		t.Fatalf("Create() org policy: %v", err)
	}

	effective, err := env.resolver.ResolveBreakPolicy(ctx, env.orgID, env.userID)
	if err != nil {
		t.Fatalf("ResolveBreakPolicy() unexpected error: %v", err)
	}
	if effective == nil || effective.Source != policy.SourceOrganization {
		t.Fatalf("effective = %+v, want organization-scoped", effective)
	}

	// A user-scoped policy takes precedence once it exists.
	userPolicy := &policy.BreakPolicy{
		ID:             uuid.New(),
		OrganizationID: env.orgID,
		UserID:         &env.userID,
		Name:           "personal",
		TrackingMode:   policy.TrackExplicit,
		IsActive:       true,
	}
	if err := env.breakPolicies.Create(ctx, userPolicy); err != nil {
		t.Fatalf("Create() user policy: %v", err)
	}

	effective, err = env.resolver.ResolveBreakPolicy(ctx, env.orgID, env.userID)
	if err != nil {
		t.Fatalf("ResolveBreakPolicy() unexpected error: %v", err)
	}
	if effective == nil || effective.Source != policy.SourceUser {
		t.Fatalf("effective = %+v, want user-scoped", effective)
	}
	if effective.Policy.ID != userPolicy.ID {
		t.Errorf("Policy.ID = %s, want %s", effective.Policy.ID, userPolicy.ID)
	}
}

func TestResolveBreakPolicy_NoneApplies(t *testing.T) {
	env := newTestEnv()

	effective, err := env.resolver.ResolveBreakPolicy(context.Background(), env.orgID, env.userID)
	if err != nil {
		t.Fatalf("ResolveBreakPolicy() unexpected error: %v", err)
	}
	if effective != nil {
		t.Errorf("effective = %+v, want nil", effective)
	}
}
