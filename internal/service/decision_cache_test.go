package service

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

func TestDecisionCache_PutGet(t *testing.T) {
	c := newDecisionCache(10)

	d := Decision{Allowed: false, Message: "denied", CanRequestOverride: true}
	c.Put(1, d)

	got, ok := c.Get(1)
	if !ok {
		t.Fatal("Get() miss after Put")
	}
	if got.Message != "denied" || !got.CanRequestOverride {
		t.Errorf("Get() = %+v, want %+v", got, d)
	}

	if _, ok := c.Get(2); ok {
		t.Error("Get() hit for unknown key")
	}
}

func TestDecisionCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newDecisionCache(2)

	c.Put(1, Decision{Message: "one"})
	c.Put(2, Decision{Message: "two"})

	// Touch 1 so 2 becomes the eviction candidate.
	if _, ok := c.Get(1); !ok {
		t.Fatal("Get(1) miss")
	}

	c.Put(3, Decision{Message: "three"})

	if _, ok := c.Get(2); ok {
		t.Error("key 2 should have been evicted")
	}
	if _, ok := c.Get(1); !ok {
		t.Error("key 1 should survive, it was recently used")
	}
	if _, ok := c.Get(3); !ok {
		t.Error("key 3 should be present")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestDecisionCache_UpdateExistingKey(t *testing.T) {
	c := newDecisionCache(2)

	c.Put(1, Decision{Message: "old"})
	c.Put(1, Decision{Message: "new"})

	got, ok := c.Get(1)
	if !ok || got.Message != "new" {
		t.Errorf("Get() = %+v, want updated decision", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestDecisionCacheKey_SensitiveToRevision(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	r := &policy.ClockRestriction{ID: uuid.New(), UpdatedAt: base}
	userID := uuid.New()

	key := decisionCacheKey(r, userID, policy.ActionClockIn, time.Monday, 34200, 0)

	if got := decisionCacheKey(r, userID, policy.ActionClockIn, time.Monday, 34200, 0); got != key {
		t.Error("identical inputs should produce identical keys")
	}

	edited := *r
	edited.UpdatedAt = base.Add(time.Minute)
	if got := decisionCacheKey(&edited, userID, policy.ActionClockIn, time.Monday, 34200, 0); got == key {
		t.Error("a policy edit must change the cache key")
	}

	if got := decisionCacheKey(r, uuid.New(), policy.ActionClockIn, time.Monday, 34200, 0); got == key {
		t.Error("a different user must change the cache key")
	}
	if got := decisionCacheKey(r, userID, policy.ActionClockOut, time.Monday, 34200, 0); got == key {
		t.Error("a different action must change the cache key")
	}
	if got := decisionCacheKey(r, userID, policy.ActionClockIn, time.Tuesday, 34200, 0); got == key {
		t.Error("a different weekday must change the cache key")
	}
	if got := decisionCacheKey(r, userID, policy.ActionClockIn, time.Monday, 34201, 0); got == key {
		t.Error("a different second of day must change the cache key")
	}
	if got := decisionCacheKey(r, userID, policy.ActionClockIn, time.Monday, 34200, 1); got == key {
		t.Error("a different event count must change the cache key")
	}
}
