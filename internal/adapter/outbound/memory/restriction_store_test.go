package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

func activeRestriction(orgID uuid.UUID, teamID, userID *uuid.UUID, createdAt time.Time) *policy.ClockRestriction {
	return &policy.ClockRestriction{
		ID:             uuid.New(),
		OrganizationID: orgID,
		TeamID:         teamID,
		UserID:         userID,
		Mode:           policy.ModeStrict,
		IsActive:       true,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestRestrictionStore_CRUD(t *testing.T) {
	s := NewRestrictionStore()
	ctx := context.Background()
	orgID := uuid.New()

	r := activeRestriction(orgID, nil, nil, time.Now())
	if err := s.Create(ctx, r); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	got, err := s.GetByID(ctx, orgID, r.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if got.ID != r.ID {
		t.Errorf("GetByID() ID = %s, want %s", got.ID, r.ID)
	}

	// Mutating the returned copy must not leak into the store.
	got.Mode = policy.ModeFlexible
	again, _ := s.GetByID(ctx, orgID, r.ID)
	if again.Mode != policy.ModeStrict {
		t.Error("GetByID() must return a copy")
	}

	got.Mode = policy.ModeFlexible
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update(): %v", err)
	}
	updated, _ := s.GetByID(ctx, orgID, r.ID)
	if updated.Mode != policy.ModeFlexible {
		t.Errorf("Mode after update = %s, want flexible", updated.Mode)
	}

	list, err := s.List(ctx, orgID)
	if err != nil {
		t.Fatalf("List(): %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() = %d entries, want 1", len(list))
	}

	if err := s.Delete(ctx, orgID, r.ID); err != nil {
		t.Fatalf("Delete(): %v", err)
	}
	if _, err := s.GetByID(ctx, orgID, r.ID); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("GetByID() after delete = %v, want ErrNotFound", err)
	}
}

func TestRestrictionStore_OrganizationScoping(t *testing.T) {
	s := NewRestrictionStore()
	ctx := context.Background()
	orgID := uuid.New()
	otherOrg := uuid.New()

	r := activeRestriction(orgID, nil, nil, time.Now())
	if err := s.Create(ctx, r); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	// A foreign organization sees the id as missing, on every operation.
	if _, err := s.GetByID(ctx, otherOrg, r.ID); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("GetByID() cross-org = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, otherOrg, r.ID); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("Delete() cross-org = %v, want ErrNotFound", err)
	}
	foreign := *r
	foreign.OrganizationID = otherOrg
	if err := s.Update(ctx, &foreign); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("Update() cross-org = %v, want ErrNotFound", err)
	}
	if list, _ := s.List(ctx, otherOrg); len(list) != 0 {
		t.Errorf("List() cross-org = %d entries, want 0", len(list))
	}
}

func TestRestrictionStore_ActiveScopeUniqueness(t *testing.T) {
	s := NewRestrictionStore()
	ctx := context.Background()
	orgID := uuid.New()
	teamID := uuid.New()

	if err := s.Create(ctx, activeRestriction(orgID, &teamID, nil, time.Now())); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	err := s.Create(ctx, activeRestriction(orgID, &teamID, nil, time.Now()))
	if !errors.Is(err, policy.ErrConflict) {
		t.Errorf("duplicate active scope = %v, want ErrConflict", err)
	}

	// An inactive duplicate is allowed.
	inactive := activeRestriction(orgID, &teamID, nil, time.Now())
	inactive.IsActive = false
	if err := s.Create(ctx, inactive); err != nil {
		t.Errorf("inactive duplicate = %v, want success", err)
	}

	// Same scope in another organization is allowed.
	if err := s.Create(ctx, activeRestriction(uuid.New(), &teamID, nil, time.Now())); err != nil {
		t.Errorf("same scope other org = %v, want success", err)
	}
}

func TestRestrictionStore_UpdateReactivationConflicts(t *testing.T) {
	s := NewRestrictionStore()
	ctx := context.Background()
	orgID := uuid.New()
	teamID := uuid.New()

	active := activeRestriction(orgID, &teamID, nil, time.Now())
	if err := s.Create(ctx, active); err != nil {
		t.Fatalf("Create() active: %v", err)
	}
	dormant := activeRestriction(orgID, &teamID, nil, time.Now())
	dormant.IsActive = false
	if err := s.Create(ctx, dormant); err != nil {
		t.Fatalf("Create() inactive: %v", err)
	}

	// Flipping the dormant one active would put two active restrictions on
	// the same scope.
	dormant.IsActive = true
	if err := s.Update(ctx, dormant); !errors.Is(err, policy.ErrConflict) {
		t.Errorf("Update(reactivate into occupied scope) = %v, want ErrConflict", err)
	}

	// Updating the already active one in place is fine.
	active.Mode = policy.ModeFlexible
	if err := s.Update(ctx, active); err != nil {
		t.Errorf("Update(active in place) = %v, want success", err)
	}

	// Once the scope is vacated the reactivation goes through.
	active.IsActive = false
	if err := s.Update(ctx, active); err != nil {
		t.Fatalf("Update(deactivate): %v", err)
	}
	dormant.IsActive = true
	if err := s.Update(ctx, dormant); err != nil {
		t.Errorf("Update(reactivate into free scope) = %v, want success", err)
	}
}

func TestRestrictionStore_FindActiveForUser(t *testing.T) {
	s := NewRestrictionStore()
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()

	inactive := activeRestriction(orgID, nil, &userID, time.Now())
	inactive.IsActive = false
	if err := s.Create(ctx, inactive); err != nil {
		t.Fatalf("Create() inactive: %v", err)
	}

	got, err := s.FindActiveForUser(ctx, orgID, userID)
	if err != nil {
		t.Fatalf("FindActiveForUser(): %v", err)
	}
	if got != nil {
		t.Errorf("inactive restriction returned: %+v", got)
	}

	active := activeRestriction(orgID, nil, &userID, time.Now())
	if err := s.Create(ctx, active); err != nil {
		t.Fatalf("Create() active: %v", err)
	}
	got, err = s.FindActiveForUser(ctx, orgID, userID)
	if err != nil {
		t.Fatalf("FindActiveForUser(): %v", err)
	}
	if got == nil || got.ID != active.ID {
		t.Errorf("FindActiveForUser() = %+v, want %s", got, active.ID)
	}
}

func TestRestrictionStore_FindActiveForTeams_NewestWins(t *testing.T) {
	s := NewRestrictionStore()
	ctx := context.Background()
	orgID := uuid.New()
	teamA := uuid.New()
	teamB := uuid.New()

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newest := activeRestriction(orgID, &teamB, nil, older.Add(time.Hour))
	if err := s.Create(ctx, activeRestriction(orgID, &teamA, nil, older)); err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if err := s.Create(ctx, newest); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	got, err := s.FindActiveForTeams(ctx, orgID, []uuid.UUID{teamA, teamB})
	if err != nil {
		t.Fatalf("FindActiveForTeams(): %v", err)
	}
	if got == nil || got.ID != newest.ID {
		t.Errorf("FindActiveForTeams() = %+v, want newest %s", got, newest.ID)
	}

	// Teams without restrictions produce nil, not an error.
	got, err = s.FindActiveForTeams(ctx, orgID, []uuid.UUID{uuid.New()})
	if err != nil {
		t.Fatalf("FindActiveForTeams(): %v", err)
	}
	if got != nil {
		t.Errorf("FindActiveForTeams() unknown team = %+v, want nil", got)
	}
}

func TestRestrictionStore_FindActiveForOrganization(t *testing.T) {
	s := NewRestrictionStore()
	ctx := context.Background()
	orgID := uuid.New()
	teamID := uuid.New()

	// Team- and user-scoped restrictions must not satisfy the org query.
	if err := s.Create(ctx, activeRestriction(orgID, &teamID, nil, time.Now())); err != nil {
		t.Fatalf("Create(): %v", err)
	}
	got, err := s.FindActiveForOrganization(ctx, orgID)
	if err != nil {
		t.Fatalf("FindActiveForOrganization(): %v", err)
	}
	if got != nil {
		t.Errorf("team-scoped restriction satisfied org query: %+v", got)
	}

	orgWide := activeRestriction(orgID, nil, nil, time.Now())
	if err := s.Create(ctx, orgWide); err != nil {
		t.Fatalf("Create(): %v", err)
	}
	got, err = s.FindActiveForOrganization(ctx, orgID)
	if err != nil {
		t.Fatalf("FindActiveForOrganization(): %v", err)
	}
	if got == nil || got.ID != orgWide.ID {
		t.Errorf("FindActiveForOrganization() = %+v, want %s", got, orgWide.ID)
	}
}
