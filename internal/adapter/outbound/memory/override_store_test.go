package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/override"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

func pendingRequest(orgID, userID uuid.UUID, action policy.ClockAction, createdAt time.Time) *override.Request {
	return &override.Request{
		ID:              uuid.New(),
		OrganizationID:  orgID,
		UserID:          userID,
		RequestedAction: action,
		RequestedAt:     createdAt,
		Status:          override.StatusPending,
		CreatedAt:       createdAt,
	}
}

func TestOverrideStore_DuplicatePending(t *testing.T) {
	s := NewOverrideStore()
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()

	if err := s.Create(ctx, pendingRequest(orgID, userID, policy.ActionClockIn, time.Now())); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	err := s.Create(ctx, pendingRequest(orgID, userID, policy.ActionClockIn, time.Now()))
	if !errors.Is(err, policy.ErrConflict) {
		t.Errorf("duplicate pending = %v, want ErrConflict", err)
	}

	// Different action, different user, or different org are all fine.
	if err := s.Create(ctx, pendingRequest(orgID, userID, policy.ActionClockOut, time.Now())); err != nil {
		t.Errorf("different action = %v, want success", err)
	}
	if err := s.Create(ctx, pendingRequest(orgID, uuid.New(), policy.ActionClockIn, time.Now())); err != nil {
		t.Errorf("different user = %v, want success", err)
	}
	if err := s.Create(ctx, pendingRequest(uuid.New(), userID, policy.ActionClockIn, time.Now())); err != nil {
		t.Errorf("different org = %v, want success", err)
	}

	// The conflict is keyed on the existing pending request, not the status of
	// the incoming one.
	auto := pendingRequest(orgID, userID, policy.ActionClockIn, time.Now())
	auto.Status = override.StatusAutoApproved
	if err := s.Create(ctx, auto); !errors.Is(err, policy.ErrConflict) {
		t.Errorf("auto-approved over pending = %v, want ErrConflict", err)
	}
}

func TestOverrideStore_DecidedRequestDoesNotBlock(t *testing.T) {
	s := NewOverrideStore()
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()

	first := pendingRequest(orgID, userID, policy.ActionClockIn, time.Now())
	if err := s.Create(ctx, first); err != nil {
		t.Fatalf("Create(): %v", err)
	}
	first.Status = override.StatusRejected
	if err := s.Update(ctx, first); err != nil {
		t.Fatalf("Update(): %v", err)
	}

	if err := s.Create(ctx, pendingRequest(orgID, userID, policy.ActionClockIn, time.Now())); err != nil {
		t.Errorf("new pending after rejection = %v, want success", err)
	}
}

func TestOverrideStore_List_NewestFirst(t *testing.T) {
	s := NewOverrideStore()
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	oldest := pendingRequest(orgID, userID, policy.ActionClockIn, base)
	newest := pendingRequest(orgID, userID, policy.ActionClockOut, base.Add(time.Hour))
	if err := s.Create(ctx, oldest); err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if err := s.Create(ctx, newest); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	list, err := s.List(ctx, orgID, override.ListFilter{})
	if err != nil {
		t.Fatalf("List(): %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() = %d entries, want 2", len(list))
	}
	if list[0].ID != newest.ID || list[1].ID != oldest.ID {
		t.Error("List() should order newest first")
	}

	filtered, err := s.List(ctx, orgID, override.ListFilter{Status: override.StatusPending, UserID: &userID})
	if err != nil {
		t.Fatalf("List() filtered: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("filtered = %d entries, want 2", len(filtered))
	}
}

func TestOverrideStore_FindPending(t *testing.T) {
	s := NewOverrideStore()
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()

	got, err := s.FindPending(ctx, orgID, userID, policy.ActionClockIn)
	if err != nil {
		t.Fatalf("FindPending(): %v", err)
	}
	if got != nil {
		t.Errorf("FindPending() empty store = %+v, want nil", got)
	}

	req := pendingRequest(orgID, userID, policy.ActionClockIn, time.Now())
	if err := s.Create(ctx, req); err != nil {
		t.Fatalf("Create(): %v", err)
	}
	got, err = s.FindPending(ctx, orgID, userID, policy.ActionClockIn)
	if err != nil {
		t.Fatalf("FindPending(): %v", err)
	}
	if got == nil || got.ID != req.ID {
		t.Errorf("FindPending() = %+v, want %s", got, req.ID)
	}
}

func TestOverrideStore_FindConsumable(t *testing.T) {
	s := NewOverrideStore()
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	approved := func(createdAt time.Time) *override.Request {
		r := pendingRequest(orgID, userID, policy.ActionClockIn, createdAt)
		r.Status = override.StatusApproved
		return r
	}

	tooOld := approved(base.Add(-48 * time.Hour))
	older := approved(base.Add(-2 * time.Hour))
	newest := approved(base.Add(-time.Hour))
	consumed := approved(base)
	entryID := uuid.New()
	consumed.ClockEntryID = &entryID

	for _, r := range []*override.Request{tooOld, older, newest, consumed} {
		if err := s.Create(ctx, r); err != nil {
			t.Fatalf("Create(): %v", err)
		}
	}

	got, err := s.FindConsumable(ctx, orgID, userID, policy.ActionClockIn, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("FindConsumable(): %v", err)
	}
	if got == nil || got.ID != newest.ID {
		t.Errorf("FindConsumable() = %+v, want newest unconsumed %s", got, newest.ID)
	}

	// A cut-off past every candidate yields nil.
	got, err = s.FindConsumable(ctx, orgID, userID, policy.ActionClockIn, base)
	if err != nil {
		t.Fatalf("FindConsumable(): %v", err)
	}
	if got != nil {
		t.Errorf("FindConsumable() past cut-off = %+v, want nil", got)
	}
}

func TestOverrideStore_GetByID_CrossOrg(t *testing.T) {
	s := NewOverrideStore()
	ctx := context.Background()
	orgID := uuid.New()

	req := pendingRequest(orgID, uuid.New(), policy.ActionClockIn, time.Now())
	if err := s.Create(ctx, req); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	if _, err := s.GetByID(ctx, uuid.New(), req.ID); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("GetByID() cross-org = %v, want ErrNotFound", err)
	}
}
