package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	celeval "github.com/shiftgate/shiftgate/internal/adapter/outbound/cel"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// Decision is the outcome of judging a clock action against the effective
// restriction.
type Decision struct {
	// Allowed is true when the action may proceed.
	Allowed bool
	// Message describes the violated window when the action is denied.
	Message string
	// CanRequestOverride is true when the denial is escalatable to an
	// override request (Flexible mode only).
	CanRequestOverride bool
	// Restriction is the effective restriction the judgment used, nil when
	// no restriction applied. Carried for audit and UI.
	Restriction *policy.EffectiveRestriction
}

// ValidationService judges clock actions. It resolves the effective
// restriction on every call and applies the window arithmetic, the optional
// CEL condition, and the daily event budget.
type ValidationService struct {
	resolver  *ResolverService
	evaluator *celeval.Evaluator
	clock     Clock
	cache     *decisionCache
	logger    *slog.Logger
}

// ValidationOption configures ValidationService.
type ValidationOption func(*ValidationService)

// WithValidationClock overrides the clock. For deterministic tests.
func WithValidationClock(c Clock) ValidationOption {
	return func(s *ValidationService) {
		s.clock = c
	}
}

// WithDecisionCacheSize sets the maximum number of cached decisions.
func WithDecisionCacheSize(size int) ValidationOption {
	return func(s *ValidationService) {
		s.cache = newDecisionCache(size)
	}
}

// NewValidationService creates a ValidationService.
func NewValidationService(resolver *ResolverService, logger *slog.Logger, opts ...ValidationOption) (*ValidationService, error) {
	evaluator, err := celeval.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create condition evaluator: %w", err)
	}

	s := &ValidationService{
		resolver:  resolver,
		evaluator: evaluator,
		clock:     SystemClock{},
		cache:     newDecisionCache(1000),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ValidateClockAction decides whether the user may perform the action now.
// todayEventCount is the number of clock events the user already recorded
// today; pass 0 when the caller does not track it.
func (s *ValidationService) ValidateClockAction(ctx context.Context, orgID, userID uuid.UUID, action policy.ClockAction, todayEventCount int) (Decision, error) {
	if !action.Valid() {
		return Decision{}, fmt.Errorf("%w: unknown clock action %q", policy.ErrValidation, action)
	}

	effective, err := s.resolver.ResolveRestriction(ctx, orgID, userID)
	if err != nil {
		return Decision{}, err
	}

	// No restriction at any level means fully permissive.
	if effective == nil {
		return Decision{Allowed: true}, nil
	}
	if effective.Restriction.Mode == policy.ModeUnrestricted {
		return Decision{Allowed: true, Restriction: effective}, nil
	}

	now := s.clock.Now()
	tod := policy.TimeOfDayFromTime(now)

	key := decisionCacheKey(&effective.Restriction, userID, action, now.Weekday(), int(tod), todayEventCount)
	if d, ok := s.cache.Get(key); ok {
		d.Restriction = effective
		return d, nil
	}

	d, err := s.judge(&effective.Restriction, action, userID, now.Weekday(), tod, todayEventCount)
	if err != nil {
		return Decision{}, err
	}
	s.cache.Put(key, d)

	d.Restriction = effective

	if !d.Allowed {
		s.logger.Debug("clock action denied",
			"org_id", orgID,
			"user_id", userID,
			"action", action,
			"source", effective.Source,
			"can_request_override", d.CanRequestOverride,
		)
	}
	return d, nil
}

// judge applies the pure decision logic for a strict or flexible restriction.
// The returned Decision carries no Restriction pointer; the caller attaches
// it.
func (s *ValidationService) judge(r *policy.ClockRestriction, action policy.ClockAction, userID uuid.UUID, day time.Weekday, tod policy.TimeOfDay, todayEventCount int) (Decision, error) {
	if r.Condition != "" {
		applies, err := s.evaluator.EvaluateExpression(r.Condition, celeval.Attempt{
			Action:      action,
			DayOfWeek:   day,
			MinuteOfDay: tod.MinuteOfDay(),
			UserID:      userID.String(),
		})
		if err != nil {
			return Decision{}, fmt.Errorf("%w: restriction condition: %w", policy.ErrValidation, err)
		}
		if !applies {
			// Condition excludes this attempt -- the restriction does not
			// apply.
			return Decision{Allowed: true}, nil
		}
	}

	if r.MaxDailyClockEvents != nil && todayEventCount >= *r.MaxDailyClockEvents {
		return s.deny(r, fmt.Sprintf("daily clock event limit of %d reached", *r.MaxDailyClockEvents)), nil
	}

	window := r.WindowFor(action)
	if window.Contains(tod) {
		return Decision{Allowed: true}, nil
	}

	return s.deny(r, fmt.Sprintf("%s not permitted at %s (window %s)", action, tod, window)), nil
}

// deny builds the denied decision; only Flexible mode offers an override.
func (s *ValidationService) deny(r *policy.ClockRestriction, msg string) Decision {
	return Decision{
		Allowed:            false,
		Message:            msg,
		CanRequestOverride: r.Mode == policy.ModeFlexible,
	}
}
