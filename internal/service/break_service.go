package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/breaks"
	"github.com/shiftgate/shiftgate/internal/domain/notify"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// BreakDeduction is the result of computing break minutes for a clock
// interval.
type BreakDeduction struct {
	// Minutes to deduct from worked time.
	Minutes int
	// Source is the scope level of the policy that produced the deduction,
	// empty when no break policy applied.
	Source policy.SourceLevel
	// Mode is the tracking mode of the applied policy, empty without one.
	Mode policy.TrackingMode
}

// BreakService owns explicit break tracking and break deduction. The two
// tracking strategies are mutually exclusive per effective policy: AutoDeduct
// infers minutes from configured windows, ExplicitTracking sums recorded
// entries.
type BreakService struct {
	entries  breaks.Store
	resolver *ResolverService
	sink     notify.Sink
	clock    Clock
	logger   *slog.Logger
}

// BreakOption configures BreakService.
type BreakOption func(*BreakService)

// WithBreakClock overrides the clock. For deterministic tests.
func WithBreakClock(c Clock) BreakOption {
	return func(s *BreakService) {
		s.clock = c
	}
}

// NewBreakService creates a BreakService.
func NewBreakService(entries breaks.Store, resolver *ResolverService, sink notify.Sink, logger *slog.Logger, opts ...BreakOption) *BreakService {
	s := &BreakService{
		entries:  entries,
		resolver: resolver,
		sink:     sink,
		clock:    SystemClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartBreak opens a break entry for the user's current clock entry. A user
// cannot be on break twice concurrently; the store enforces the single-open
// invariant atomically and a second start surfaces as ErrConflict.
func (s *BreakService) StartBreak(ctx context.Context, orgID, userID, clockEntryID uuid.UUID) (*breaks.Entry, error) {
	entry := &breaks.Entry{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         userID,
		ClockEntryID:   clockEntryID,
		BreakStart:     s.clock.Now(),
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("break started", "org_id", orgID, "user_id", userID, "entry_id", entry.ID)
	return entry, nil
}

// EndBreak closes the user's open break, computing its duration in whole
// minutes. Returns ErrNotFound when no break is open.
func (s *BreakService) EndBreak(ctx context.Context, orgID, userID uuid.UUID) (*breaks.Entry, error) {
	entry, err := s.entries.FindOpen(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: no open break for user", policy.ErrNotFound)
	}

	now := s.clock.Now()
	minutes := int(now.Sub(entry.BreakStart).Minutes())
	entry.BreakEnd = &now
	entry.DurationMinutes = &minutes

	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("break ended", "org_id", orgID, "user_id", userID, "entry_id", entry.ID, "minutes", minutes)
	return entry, nil
}

// DeductedMinutes computes the break minutes to subtract from the worked time
// of the clock interval [clockIn, clockOut].
//
// AutoDeduct looks up the break window for clock-in's weekday and, when the
// interval overlaps it at all, deducts the window's configured minimum -- a
// fixed amount, never the actual overlap duration. ExplicitTracking sums the
// closed entries linked to the clock entry; an open break contributes nothing
// until closed.
func (s *BreakService) DeductedMinutes(ctx context.Context, orgID, userID, clockEntryID uuid.UUID, clockIn, clockOut time.Time) (BreakDeduction, error) {
	effective, err := s.resolver.ResolveBreakPolicy(ctx, orgID, userID)
	if err != nil {
		return BreakDeduction{}, err
	}
	if effective == nil {
		return BreakDeduction{}, nil
	}

	result := BreakDeduction{
		Source: effective.Source,
		Mode:   effective.Policy.TrackingMode,
	}

	switch effective.Policy.TrackingMode {
	case policy.TrackAutoDeduct:
		window := effective.Policy.WindowForDay(clockIn.Weekday())
		if window == nil {
			return result, nil
		}
		inTod := policy.TimeOfDayFromTime(clockIn)
		outTod := policy.TimeOfDayFromTime(clockOut)
		if inTod <= window.WindowEnd && outTod >= window.WindowStart {
			result.Minutes = window.MinDurationMinutes
		}
		return result, nil

	case policy.TrackExplicit:
		entries, err := s.entries.ListForClockEntry(ctx, orgID, clockEntryID)
		if err != nil {
			return BreakDeduction{}, err
		}
		for i := range entries {
			if entries[i].DurationMinutes != nil {
				result.Minutes += *entries[i].DurationMinutes
			}
		}
		if result.Minutes == 0 && effective.Policy.NotifyMissingBreak {
			s.notifyMissingBreak(ctx, orgID, userID, &effective.Policy, clockIn)
		}
		return result, nil

	default:
		return BreakDeduction{}, fmt.Errorf("%w: unknown tracking mode %q", policy.ErrValidation, effective.Policy.TrackingMode)
	}
}

// notifyMissingBreak warns the user best-effort when a mandatory break window
// was configured for the day but no break was recorded.
func (s *BreakService) notifyMissingBreak(ctx context.Context, orgID, userID uuid.UUID, p *policy.BreakPolicy, clockIn time.Time) {
	window := p.WindowForDay(clockIn.Weekday())
	if window == nil || !window.IsMandatory {
		return
	}
	msg := notify.Message{
		OrganizationID: orgID,
		UserID:         userID,
		Kind:           notify.KindMissingBreak,
		Title:          "Missing break",
		Body:           fmt.Sprintf("No break was recorded for the mandatory %s window.", window.WindowStart),
	}
	if err := s.sink.Notify(ctx, msg); err != nil {
		s.logger.Warn("notification failed", "kind", msg.Kind, "user_id", userID, "error", err)
	}
}
