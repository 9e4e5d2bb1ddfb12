package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/adapter/outbound/memory"
	"github.com/shiftgate/shiftgate/internal/domain/notify"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
	"github.com/shiftgate/shiftgate/internal/domain/team"
)

// fixedClock pins Now to a single instant.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// recordSink captures notifications for assertions.
type recordSink struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (s *recordSink) Notify(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordSink) Messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv bundles the in-memory fixtures most service tests need: one org,
// one team with a member and a manager, and the resolver over fresh stores.
type testEnv struct {
	orgID     uuid.UUID
	teamID    uuid.UUID
	userID    uuid.UUID
	managerID uuid.UUID

	restrictions  *memory.RestrictionStore
	breakPolicies *memory.BreakPolicyStore
	overrides     *memory.OverrideStore
	breakEntries  *memory.BreakEntryStore
	directory     *memory.Directory
	resolver      *ResolverService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		orgID:         uuid.New(),
		teamID:        uuid.New(),
		userID:        uuid.New(),
		managerID:     uuid.New(),
		restrictions:  memory.NewRestrictionStore(),
		breakPolicies: memory.NewBreakPolicyStore(),
		overrides:     memory.NewOverrideStore(),
		breakEntries:  memory.NewBreakEntryStore(),
		directory:     memory.NewDirectory(),
	}

	env.directory.AddTeam(team.Team{ID: env.teamID, OrganizationID: env.orgID, Name: "assembly"})
	env.directory.AddUser(env.orgID, env.userID)
	env.directory.AddUser(env.orgID, env.managerID)
	env.directory.AddMember(env.teamID, env.userID)
	env.directory.AddManager(env.teamID, env.managerID)

	env.resolver = NewResolverService(env.restrictions, env.breakPolicies, env.directory, testLogger())
	return env
}

// seedRestriction inserts an active restriction with the given scope.
func (env *testEnv) seedRestriction(t restrictionSeed) *policy.ClockRestriction {
	r := &policy.ClockRestriction{
		ID:                     uuid.New(),
		OrganizationID:         env.orgID,
		TeamID:                 t.teamID,
		UserID:                 t.userID,
		Mode:                   t.mode,
		ClockInEarliest:        t.inEarliest,
		ClockInLatest:          t.inLatest,
		ClockOutEarliest:       t.outEarliest,
		ClockOutLatest:         t.outLatest,
		Condition:              t.condition,
		RequireManagerApproval: t.requireApproval,
		MaxDailyClockEvents:    t.maxDaily,
		IsActive:               true,
		CreatedAt:              t.createdAt,
		UpdatedAt:              t.createdAt,
	}
	if err := env.restrictions.Create(context.Background(), r); err != nil {
		panic(err)
	}
	return r
}

type restrictionSeed struct {
	teamID          *uuid.UUID
	userID          *uuid.UUID
	mode            policy.RestrictionMode
	inEarliest      *policy.TimeOfDay
	inLatest        *policy.TimeOfDay
	outEarliest     *policy.TimeOfDay
	outLatest       *policy.TimeOfDay
	condition       string
	requireApproval bool
	maxDaily        *int
	createdAt       time.Time
}

func tod(s string) *policy.TimeOfDay {
	v := policy.MustTimeOfDay(s)
	return &v
}

func teamFixture(id, orgID uuid.UUID) team.Team {
	return team.Team{ID: id, OrganizationID: orgID, Name: "team-" + id.String()[:8]}
}
