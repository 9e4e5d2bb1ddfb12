package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/breaks"
	"github.com/shiftgate/shiftgate/internal/domain/override"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

var baseTime = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tod(seconds int) *policy.TimeOfDay {
	t := policy.TimeOfDay(seconds)
	return &t
}

func activeRestriction(orgID uuid.UUID, teamID, userID *uuid.UUID, createdAt time.Time) *policy.ClockRestriction {
	return &policy.ClockRestriction{
		ID:              uuid.New(),
		OrganizationID:  orgID,
		TeamID:          teamID,
		UserID:          userID,
		Mode:            policy.ModeFlexible,
		ClockInEarliest: tod(9 * 3600),
		ClockInLatest:   tod(17 * 3600),
		EnforceSchedule: true,
		IsActive:        true,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func TestRestrictionStore_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewRestrictionStore(db)
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()

	maxDaily := 4
	r := activeRestriction(orgID, nil, &userID, baseTime)
	r.Condition = `day_of_week < 6`
	r.MaxDailyClockEvents = &maxDaily

	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	got, err := store.GetByID(ctx, orgID, r.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if got.Mode != policy.ModeFlexible {
		t.Errorf("Mode = %v, want flexible", got.Mode)
	}
	if got.UserID == nil || *got.UserID != userID {
		t.Errorf("UserID = %v, want %s", got.UserID, userID)
	}
	if got.TeamID != nil {
		t.Errorf("TeamID = %v, want nil", got.TeamID)
	}
	if got.ClockInEarliest == nil || *got.ClockInEarliest != policy.TimeOfDay(9*3600) {
		t.Errorf("ClockInEarliest = %v, want 09:00:00", got.ClockInEarliest)
	}
	if got.ClockOutEarliest != nil {
		t.Errorf("ClockOutEarliest = %v, want nil", got.ClockOutEarliest)
	}
	if got.Condition != r.Condition {
		t.Errorf("Condition = %q, want %q", got.Condition, r.Condition)
	}
	if got.MaxDailyClockEvents == nil || *got.MaxDailyClockEvents != 4 {
		t.Errorf("MaxDailyClockEvents = %v, want 4", got.MaxDailyClockEvents)
	}
	if !got.CreatedAt.Equal(baseTime) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, baseTime)
	}
}

func TestRestrictionStore_ScopeUniqueness(t *testing.T) {
	db := openTestDB(t)
	store := NewRestrictionStore(db)
	ctx := context.Background()
	orgID := uuid.New()
	teamID := uuid.New()

	if err := store.Create(ctx, activeRestriction(orgID, &teamID, nil, baseTime)); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	err := store.Create(ctx, activeRestriction(orgID, &teamID, nil, baseTime.Add(time.Hour)))
	if !errors.Is(err, policy.ErrConflict) {
		t.Errorf("Create(duplicate scope) = %v, want ErrConflict", err)
	}

	// An inactive duplicate and the same scope in another organization are
	// both fine.
	inactive := activeRestriction(orgID, &teamID, nil, baseTime.Add(time.Hour))
	inactive.IsActive = false
	if err := store.Create(ctx, inactive); err != nil {
		t.Errorf("Create(inactive duplicate) = %v, want nil", err)
	}
	if err := store.Create(ctx, activeRestriction(uuid.New(), &teamID, nil, baseTime)); err != nil {
		t.Errorf("Create(other org) = %v, want nil", err)
	}
}

func TestRestrictionStore_OrganizationScoping(t *testing.T) {
	db := openTestDB(t)
	store := NewRestrictionStore(db)
	ctx := context.Background()
	orgID := uuid.New()
	otherOrg := uuid.New()

	r := activeRestriction(orgID, nil, nil, baseTime)
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	if _, err := store.GetByID(ctx, otherOrg, r.ID); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("GetByID(other org) = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, otherOrg, r.ID); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("Delete(other org) = %v, want ErrNotFound", err)
	}
	list, err := store.List(ctx, otherOrg)
	if err != nil {
		t.Fatalf("List(): %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List(other org) = %d rows, want 0", len(list))
	}
}

func TestRestrictionStore_Finders(t *testing.T) {
	db := openTestDB(t)
	store := NewRestrictionStore(db)
	ctx := context.Background()
	orgID := uuid.New()
	teamA := uuid.New()
	teamB := uuid.New()
	userID := uuid.New()

	orgWide := activeRestriction(orgID, nil, nil, baseTime)
	older := activeRestriction(orgID, &teamA, nil, baseTime.Add(time.Hour))
	newer := activeRestriction(orgID, &teamB, nil, baseTime.Add(2*time.Hour))
	userScoped := activeRestriction(orgID, nil, &userID, baseTime)
	for _, r := range []*policy.ClockRestriction{orgWide, older, newer, userScoped} {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("Create(): %v", err)
		}
	}

	got, err := store.FindActiveForUser(ctx, orgID, userID)
	if err != nil {
		t.Fatalf("FindActiveForUser(): %v", err)
	}
	if got == nil || got.ID != userScoped.ID {
		t.Errorf("FindActiveForUser() = %v, want %s", got, userScoped.ID)
	}

	got, err = store.FindActiveForTeams(ctx, orgID, []uuid.UUID{teamA, teamB})
	if err != nil {
		t.Fatalf("FindActiveForTeams(): %v", err)
	}
	if got == nil || got.ID != newer.ID {
		t.Errorf("FindActiveForTeams() = %v, want newest %s", got, newer.ID)
	}

	got, err = store.FindActiveForOrganization(ctx, orgID)
	if err != nil {
		t.Fatalf("FindActiveForOrganization(): %v", err)
	}
	if got == nil || got.ID != orgWide.ID {
		t.Errorf("FindActiveForOrganization() = %v, want %s", got, orgWide.ID)
	}

	got, err = store.FindActiveForUser(ctx, orgID, uuid.New())
	if err != nil {
		t.Fatalf("FindActiveForUser(unknown): %v", err)
	}
	if got != nil {
		t.Errorf("FindActiveForUser(unknown) = %v, want nil", got)
	}
}

func TestRestrictionStore_Update(t *testing.T) {
	db := openTestDB(t)
	store := NewRestrictionStore(db)
	ctx := context.Background()
	orgID := uuid.New()

	r := activeRestriction(orgID, nil, nil, baseTime)
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	r.Mode = policy.ModeStrict
	r.IsActive = false
	r.UpdatedAt = baseTime.Add(time.Hour)
	if err := store.Update(ctx, r); err != nil {
		t.Fatalf("Update(): %v", err)
	}

	got, err := store.GetByID(ctx, orgID, r.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if got.Mode != policy.ModeStrict || got.IsActive {
		t.Errorf("after update: mode = %v active = %v, want strict inactive", got.Mode, got.IsActive)
	}
	if !got.UpdatedAt.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, baseTime.Add(time.Hour))
	}

	missing := activeRestriction(orgID, nil, nil, baseTime)
	if err := store.Update(ctx, missing); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("Update(missing) = %v, want ErrNotFound", err)
	}
}

func TestRestrictionStore_UpdateReactivationConflicts(t *testing.T) {
	db := openTestDB(t)
	store := NewRestrictionStore(db)
	ctx := context.Background()
	orgID := uuid.New()
	teamID := uuid.New()

	active := activeRestriction(orgID, &teamID, nil, baseTime)
	if err := store.Create(ctx, active); err != nil {
		t.Fatalf("Create() active: %v", err)
	}
	dormant := activeRestriction(orgID, &teamID, nil, baseTime.Add(time.Hour))
	dormant.IsActive = false
	if err := store.Create(ctx, dormant); err != nil {
		t.Fatalf("Create() inactive: %v", err)
	}

	// Reactivating into a scope that already has an active restriction must
	// conflict, just as the duplicate would on Create.
	dormant.IsActive = true
	if err := store.Update(ctx, dormant); !errors.Is(err, policy.ErrConflict) {
		t.Errorf("Update(reactivate into occupied scope) = %v, want ErrConflict", err)
	}

	// The restriction holding the scope may still be updated in place.
	active.Mode = policy.ModeFlexible
	if err := store.Update(ctx, active); err != nil {
		t.Errorf("Update(active in place) = %v, want nil", err)
	}

	active.IsActive = false
	if err := store.Update(ctx, active); err != nil {
		t.Fatalf("Update(deactivate): %v", err)
	}
	if err := store.Update(ctx, dormant); err != nil {
		t.Errorf("Update(reactivate into free scope) = %v, want nil", err)
	}
}

func pendingRequest(orgID, userID uuid.UUID, action policy.ClockAction, createdAt time.Time) *override.Request {
	return &override.Request{
		ID:              uuid.New(),
		OrganizationID:  orgID,
		UserID:          userID,
		RequestedAction: action,
		RequestedAt:     createdAt,
		Reason:          "running late",
		Status:          override.StatusPending,
		CreatedAt:       createdAt,
	}
}

func TestOverrideStore_DuplicatePending(t *testing.T) {
	db := openTestDB(t)
	store := NewOverrideStore(db)
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()

	if err := store.Create(ctx, pendingRequest(orgID, userID, policy.ActionClockIn, baseTime)); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	err := store.Create(ctx, pendingRequest(orgID, userID, policy.ActionClockIn, baseTime.Add(time.Minute)))
	if !errors.Is(err, policy.ErrConflict) {
		t.Errorf("Create(duplicate pending) = %v, want ErrConflict", err)
	}
	if err := store.Create(ctx, pendingRequest(orgID, userID, policy.ActionClockOut, baseTime)); err != nil {
		t.Errorf("Create(other action) = %v, want nil", err)
	}

	// A pending request blocks any new request for the action, whatever
	// status the new one carries.
	auto := pendingRequest(orgID, userID, policy.ActionClockIn, baseTime.Add(time.Minute))
	auto.Status = override.StatusAutoApproved
	if err := store.Create(ctx, auto); !errors.Is(err, policy.ErrConflict) {
		t.Errorf("Create(auto-approved over pending) = %v, want ErrConflict", err)
	}
}

func TestOverrideStore_ReviewRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewOverrideStore(db)
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()
	reviewerID := uuid.New()

	req := pendingRequest(orgID, userID, policy.ActionClockOut, baseTime)
	if err := store.Create(ctx, req); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	reviewedAt := baseTime.Add(30 * time.Minute)
	req.Status = override.StatusApproved
	req.ReviewedBy = &reviewerID
	req.ReviewedAt = &reviewedAt
	req.ReviewNotes = "confirmed"
	if err := store.Update(ctx, req); err != nil {
		t.Fatalf("Update(): %v", err)
	}

	got, err := store.GetByID(ctx, orgID, req.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if got.Status != override.StatusApproved {
		t.Errorf("Status = %v, want approved", got.Status)
	}
	if got.ReviewedBy == nil || *got.ReviewedBy != reviewerID {
		t.Errorf("ReviewedBy = %v, want %s", got.ReviewedBy, reviewerID)
	}
	if got.ReviewedAt == nil || !got.ReviewedAt.Equal(reviewedAt) {
		t.Errorf("ReviewedAt = %v, want %v", got.ReviewedAt, reviewedAt)
	}
}

func TestOverrideStore_ListFilterAndOrder(t *testing.T) {
	db := openTestDB(t)
	store := NewOverrideStore(db)
	ctx := context.Background()
	orgID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	first := pendingRequest(orgID, alice, policy.ActionClockIn, baseTime)
	second := pendingRequest(orgID, bob, policy.ActionClockIn, baseTime.Add(time.Hour))
	third := pendingRequest(orgID, alice, policy.ActionClockOut, baseTime.Add(2*time.Hour))
	for _, r := range []*override.Request{first, second, third} {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("Create(): %v", err)
		}
	}

	all, err := store.List(ctx, orgID, override.ListFilter{})
	if err != nil {
		t.Fatalf("List(): %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() = %d rows, want 3", len(all))
	}
	if all[0].ID != third.ID {
		t.Errorf("List()[0] = %s, want newest %s", all[0].ID, third.ID)
	}

	mine, err := store.List(ctx, orgID, override.ListFilter{UserID: &alice})
	if err != nil {
		t.Fatalf("List(user filter): %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("List(user filter) = %d rows, want 2", len(mine))
	}
}

func TestOverrideStore_FindConsumable(t *testing.T) {
	db := openTestDB(t)
	store := NewOverrideStore(db)
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()

	stale := pendingRequest(orgID, userID, policy.ActionClockIn, baseTime.Add(-48*time.Hour))
	stale.Status = override.StatusApproved
	fresh := pendingRequest(orgID, userID, policy.ActionClockIn, baseTime)
	fresh.Status = override.StatusAutoApproved
	for _, r := range []*override.Request{stale, fresh} {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("Create(): %v", err)
		}
	}

	got, err := store.FindConsumable(ctx, orgID, userID, policy.ActionClockIn, baseTime.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("FindConsumable(): %v", err)
	}
	if got == nil || got.ID != fresh.ID {
		t.Errorf("FindConsumable() = %v, want %s", got, fresh.ID)
	}

	// Consume it; nothing is left inside the window.
	clockEntryID := uuid.New()
	fresh.ClockEntryID = &clockEntryID
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update(): %v", err)
	}
	got, err = store.FindConsumable(ctx, orgID, userID, policy.ActionClockIn, baseTime.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("FindConsumable(): %v", err)
	}
	if got != nil {
		t.Errorf("FindConsumable(after consume) = %v, want nil", got)
	}
}

func TestBreakEntryStore_OpenCloseCycle(t *testing.T) {
	db := openTestDB(t)
	store := NewBreakEntryStore(db)
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()
	clockEntryID := uuid.New()

	entry := &breaks.Entry{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         userID,
		ClockEntryID:   clockEntryID,
		BreakStart:     baseTime,
	}
	if err := store.Create(ctx, entry); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	err := store.Create(ctx, &breaks.Entry{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         userID,
		ClockEntryID:   clockEntryID,
		BreakStart:     baseTime.Add(time.Minute),
	})
	if !errors.Is(err, policy.ErrConflict) {
		t.Errorf("Create(second open) = %v, want ErrConflict", err)
	}

	open, err := store.FindOpen(ctx, orgID, userID)
	if err != nil {
		t.Fatalf("FindOpen(): %v", err)
	}
	if open == nil || open.ID != entry.ID {
		t.Fatalf("FindOpen() = %v, want %s", open, entry.ID)
	}

	end := baseTime.Add(32 * time.Minute)
	minutes := 32
	entry.BreakEnd = &end
	entry.DurationMinutes = &minutes
	if err := store.Update(ctx, entry); err != nil {
		t.Fatalf("Update(): %v", err)
	}

	open, err = store.FindOpen(ctx, orgID, userID)
	if err != nil {
		t.Fatalf("FindOpen(): %v", err)
	}
	if open != nil {
		t.Errorf("FindOpen(after close) = %v, want nil", open)
	}

	listed, err := store.ListForClockEntry(ctx, orgID, clockEntryID)
	if err != nil {
		t.Fatalf("ListForClockEntry(): %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("ListForClockEntry() = %d rows, want 1", len(listed))
	}
	if listed[0].DurationMinutes == nil || *listed[0].DurationMinutes != 32 {
		t.Errorf("DurationMinutes = %v, want 32", listed[0].DurationMinutes)
	}
	if listed[0].BreakEnd == nil || !listed[0].BreakEnd.Equal(end) {
		t.Errorf("BreakEnd = %v, want %v", listed[0].BreakEnd, end)
	}
}

func breakPolicyFixture(orgID uuid.UUID, createdAt time.Time) *policy.BreakPolicy {
	return &policy.BreakPolicy{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           "lunch",
		TrackingMode:   policy.TrackAutoDeduct,
		Windows: []policy.BreakWindow{
			{
				ID:                 uuid.New(),
				DayOfWeek:          1,
				WindowStart:        policy.TimeOfDay(12 * 3600),
				WindowEnd:          policy.TimeOfDay(13 * 3600),
				MinDurationMinutes: 30,
				MaxDurationMinutes: 60,
				IsMandatory:        true,
			},
		},
		NotifyMissingBreak: true,
		IsActive:           true,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
}

func TestBreakPolicyStore_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewBreakPolicyStore(db)
	ctx := context.Background()
	orgID := uuid.New()

	p := breakPolicyFixture(orgID, baseTime)
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	got, err := store.GetByID(ctx, orgID, p.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if got.TrackingMode != policy.TrackAutoDeduct {
		t.Errorf("TrackingMode = %v, want auto_deduct", got.TrackingMode)
	}
	if len(got.Windows) != 1 {
		t.Fatalf("Windows = %d, want 1", len(got.Windows))
	}
	w := got.Windows[0]
	if w.DayOfWeek != 1 || w.WindowStart != policy.TimeOfDay(12*3600) || w.MinDurationMinutes != 30 {
		t.Errorf("window = %+v, want Monday 12:00 min 30", w)
	}
	if !w.IsMandatory {
		t.Error("IsMandatory = false, want true")
	}

	resolved, err := store.FindActiveForOrganization(ctx, orgID)
	if err != nil {
		t.Fatalf("FindActiveForOrganization(): %v", err)
	}
	if resolved == nil || resolved.ID != p.ID {
		t.Errorf("FindActiveForOrganization() = %v, want %s", resolved, p.ID)
	}
	if len(resolved.Windows) != 1 {
		t.Errorf("resolved windows = %d, want 1", len(resolved.Windows))
	}
}

func TestBreakPolicyStore_UpdateReplacesWindows(t *testing.T) {
	db := openTestDB(t)
	store := NewBreakPolicyStore(db)
	ctx := context.Background()
	orgID := uuid.New()

	p := breakPolicyFixture(orgID, baseTime)
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	p.Windows = []policy.BreakWindow{
		{ID: uuid.New(), DayOfWeek: 2, WindowStart: policy.TimeOfDay(14 * 3600), WindowEnd: policy.TimeOfDay(15 * 3600), MinDurationMinutes: 15},
		{ID: uuid.New(), DayOfWeek: 3, WindowStart: policy.TimeOfDay(14 * 3600), WindowEnd: policy.TimeOfDay(15 * 3600), MinDurationMinutes: 15},
	}
	p.UpdatedAt = baseTime.Add(time.Hour)
	if err := store.Update(ctx, p); err != nil {
		t.Fatalf("Update(): %v", err)
	}

	got, err := store.GetByID(ctx, orgID, p.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if len(got.Windows) != 2 {
		t.Fatalf("Windows = %d, want 2", len(got.Windows))
	}
	for _, w := range got.Windows {
		if w.DayOfWeek == 1 {
			t.Error("old Monday window survived the update")
		}
	}
}

func TestBreakPolicyStore_DeleteCascadesWindows(t *testing.T) {
	db := openTestDB(t)
	store := NewBreakPolicyStore(db)
	ctx := context.Background()
	orgID := uuid.New()

	p := breakPolicyFixture(orgID, baseTime)
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if err := store.Delete(ctx, orgID, p.ID); err != nil {
		t.Fatalf("Delete(): %v", err)
	}
	if _, err := store.GetByID(ctx, orgID, p.ID); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("GetByID(after delete) = %v, want ErrNotFound", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM break_windows WHERE policy_id = ?`, p.ID.String()).Scan(&n); err != nil {
		t.Fatalf("counting windows: %v", err)
	}
	if n != 0 {
		t.Errorf("orphaned windows = %d, want 0", n)
	}
}
