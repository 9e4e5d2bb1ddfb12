// Package policy contains domain types for time-policy resolution: clock
// restrictions, break policies, and the effective-policy read models produced
// by the cascade.
package policy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClockAction is the employee action a restriction window applies to.
type ClockAction string

const (
	// ActionClockIn starts a work interval.
	ActionClockIn ClockAction = "clock_in"
	// ActionClockOut ends a work interval.
	ActionClockOut ClockAction = "clock_out"
)

// Valid reports whether the action is a recognized value.
func (a ClockAction) Valid() bool {
	return a == ActionClockIn || a == ActionClockOut
}

// RestrictionMode selects how a clock restriction is enforced.
type RestrictionMode string

const (
	// ModeUnrestricted disables window enforcement entirely.
	ModeUnrestricted RestrictionMode = "unrestricted"
	// ModeStrict denies out-of-window actions with no recourse.
	ModeStrict RestrictionMode = "strict"
	// ModeFlexible denies out-of-window actions but offers an override
	// request.
	ModeFlexible RestrictionMode = "flexible"
)

// Valid reports whether the mode is a recognized value.
func (m RestrictionMode) Valid() bool {
	switch m {
	case ModeUnrestricted, ModeStrict, ModeFlexible:
		return true
	}
	return false
}

// SourceLevel is the scope a resolved policy was declared at.
type SourceLevel string

const (
	// SourceUser is a policy scoped to a single user.
	SourceUser SourceLevel = "user"
	// SourceTeam is a policy scoped to a team, applying to its members.
	SourceTeam SourceLevel = "team"
	// SourceOrganization is an organization-wide policy.
	SourceOrganization SourceLevel = "organization"
)

// ClockRestriction constrains when clock-in and clock-out are permitted.
// Exactly one of {UserID set, TeamID set, neither set} holds; that determines
// the scope level. Never both.
type ClockRestriction struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	TeamID         *uuid.UUID
	UserID         *uuid.UUID

	Mode RestrictionMode

	ClockInEarliest  *TimeOfDay
	ClockInLatest    *TimeOfDay
	ClockOutEarliest *TimeOfDay
	ClockOutLatest   *TimeOfDay

	// Condition is an optional CEL expression gating applicability. When
	// non-empty and it evaluates false for an attempt, the restriction does
	// not apply to that attempt. Variables: action, day_of_week,
	// minute_of_day, user_id.
	Condition string

	EnforceSchedule        bool
	RequireManagerApproval bool
	MaxDailyClockEvents    *int

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WindowFor selects the restriction's window for the given action.
func (r *ClockRestriction) WindowFor(action ClockAction) Window {
	if action == ActionClockOut {
		return Window{Earliest: r.ClockOutEarliest, Latest: r.ClockOutLatest}
	}
	return Window{Earliest: r.ClockInEarliest, Latest: r.ClockInLatest}
}

// Scope returns the level this restriction is declared at.
func (r *ClockRestriction) Scope() SourceLevel {
	return scopeOf(r.TeamID, r.UserID)
}

// ValidateScope rejects a restriction scoped to both a team and a user.
func (r *ClockRestriction) ValidateScope() error {
	return validateScope(r.TeamID, r.UserID)
}

// TrackingMode selects the break accounting strategy of a break policy.
type TrackingMode string

const (
	// TrackAutoDeduct infers break minutes from configured windows.
	TrackAutoDeduct TrackingMode = "auto_deduct"
	// TrackExplicit sums explicitly recorded break entries.
	TrackExplicit TrackingMode = "explicit_tracking"
)

// Valid reports whether the tracking mode is a recognized value.
func (m TrackingMode) Valid() bool {
	return m == TrackAutoDeduct || m == TrackExplicit
}

// BreakPolicy configures break accounting for a scope. Same scope invariant
// as ClockRestriction.
type BreakPolicy struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	TeamID         *uuid.UUID
	UserID         *uuid.UUID

	Name         string
	TrackingMode TrackingMode

	// Windows holds at most one entry per day of week.
	Windows []BreakWindow

	NotifyMissingBreak bool
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Scope returns the level this policy is declared at.
func (p *BreakPolicy) Scope() SourceLevel {
	return scopeOf(p.TeamID, p.UserID)
}

// ValidateScope rejects a policy scoped to both a team and a user.
func (p *BreakPolicy) ValidateScope() error {
	return validateScope(p.TeamID, p.UserID)
}

// WindowForDay returns the break window configured for the given weekday, or
// nil when none is configured.
func (p *BreakPolicy) WindowForDay(day time.Weekday) *BreakWindow {
	for i := range p.Windows {
		if p.Windows[i].DayOfWeek == int(day) {
			return &p.Windows[i]
		}
	}
	return nil
}

// BreakWindow is a per-weekday break window belonging to a BreakPolicy.
// DayOfWeek runs 0 (Sunday) through 6 (Saturday), matching time.Weekday.
type BreakWindow struct {
	ID       uuid.UUID
	PolicyID uuid.UUID

	DayOfWeek   int
	WindowStart TimeOfDay
	WindowEnd   TimeOfDay

	MinDurationMinutes int
	MaxDurationMinutes int
	IsMandatory        bool
}

// Validate checks the window's day and duration bounds.
func (w *BreakWindow) Validate() error {
	if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week %d out of range", ErrValidation, w.DayOfWeek)
	}
	if w.MinDurationMinutes < 0 {
		return fmt.Errorf("%w: min_duration_minutes must not be negative", ErrValidation)
	}
	if w.MaxDurationMinutes != 0 && w.MaxDurationMinutes < w.MinDurationMinutes {
		return fmt.Errorf("%w: max_duration_minutes below min_duration_minutes", ErrValidation)
	}
	return nil
}

// EffectiveRestriction pairs a resolved restriction with the scope level it
// came from. It is a derived read model, recomputed on every query and never
// cached across requests.
type EffectiveRestriction struct {
	Restriction ClockRestriction
	Source      SourceLevel
}

// EffectiveBreakPolicy pairs a resolved break policy with its source level.
type EffectiveBreakPolicy struct {
	Policy BreakPolicy
	Source SourceLevel
}

func scopeOf(teamID, userID *uuid.UUID) SourceLevel {
	switch {
	case userID != nil:
		return SourceUser
	case teamID != nil:
		return SourceTeam
	default:
		return SourceOrganization
	}
}

func validateScope(teamID, userID *uuid.UUID) error {
	if teamID != nil && userID != nil {
		return fmt.Errorf("%w: policy cannot be scoped to both a team and a user", ErrValidation)
	}
	return nil
}
