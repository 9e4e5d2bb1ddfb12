package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	celeval "github.com/shiftgate/shiftgate/internal/adapter/outbound/cel"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
	"github.com/shiftgate/shiftgate/internal/domain/team"
)

// PolicyAdminService is the CRUD surface for clock restrictions and break
// policies. It validates scope exclusivity and foreign-scope references
// before touching the stores; uniqueness of active policies per scope tuple
// is enforced by the stores and surfaces as ErrConflict.
type PolicyAdminService struct {
	restrictions  policy.RestrictionStore
	breakPolicies policy.BreakPolicyStore
	directory     team.Directory
	evaluator     *celeval.Evaluator
	clock         Clock
	logger        *slog.Logger
}

// AdminOption configures PolicyAdminService.
type AdminOption func(*PolicyAdminService)

// WithAdminClock overrides the clock. For deterministic tests.
func WithAdminClock(c Clock) AdminOption {
	return func(s *PolicyAdminService) {
		s.clock = c
	}
}

// NewPolicyAdminService creates a PolicyAdminService.
func NewPolicyAdminService(
	restrictions policy.RestrictionStore,
	breakPolicies policy.BreakPolicyStore,
	directory team.Directory,
	logger *slog.Logger,
	opts ...AdminOption,
) (*PolicyAdminService, error) {
	evaluator, err := celeval.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create condition evaluator: %w", err)
	}
	s := &PolicyAdminService{
		restrictions:  restrictions,
		breakPolicies: breakPolicies,
		directory:     directory,
		evaluator:     evaluator,
		clock:         SystemClock{},
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateRestriction validates and persists a new clock restriction.
func (s *PolicyAdminService) CreateRestriction(ctx context.Context, r *policy.ClockRestriction) (*policy.ClockRestriction, error) {
	if err := s.validateRestriction(ctx, r); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := s.restrictions.Create(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info("clock restriction created",
		"org_id", r.OrganizationID,
		"restriction_id", r.ID,
		"scope", r.Scope(),
		"mode", r.Mode,
	)
	return r, nil
}

// GetRestriction returns a restriction by id within the organization.
func (s *PolicyAdminService) GetRestriction(ctx context.Context, orgID, id uuid.UUID) (*policy.ClockRestriction, error) {
	return s.restrictions.GetByID(ctx, orgID, id)
}

// ListRestrictions returns all restrictions of the organization.
func (s *PolicyAdminService) ListRestrictions(ctx context.Context, orgID uuid.UUID) ([]policy.ClockRestriction, error) {
	return s.restrictions.List(ctx, orgID)
}

// UpdateRestriction validates and persists changes to a restriction's
// forward-looking fields. Scope is immutable after creation.
func (s *PolicyAdminService) UpdateRestriction(ctx context.Context, r *policy.ClockRestriction) (*policy.ClockRestriction, error) {
	existing, err := s.restrictions.GetByID(ctx, r.OrganizationID, r.ID)
	if err != nil {
		return nil, err
	}
	if !scopeEqual(existing.TeamID, r.TeamID) || !scopeEqual(existing.UserID, r.UserID) {
		return nil, fmt.Errorf("%w: policy scope is immutable", policy.ErrValidation)
	}
	if err := s.validateRestriction(ctx, r); err != nil {
		return nil, err
	}

	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = s.clock.Now()
	if err := s.restrictions.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteRestriction removes a restriction. Historical override requests are
// untouched.
func (s *PolicyAdminService) DeleteRestriction(ctx context.Context, orgID, id uuid.UUID) error {
	return s.restrictions.Delete(ctx, orgID, id)
}

// CreateBreakPolicy validates and persists a new break policy with its
// windows.
func (s *PolicyAdminService) CreateBreakPolicy(ctx context.Context, p *policy.BreakPolicy) (*policy.BreakPolicy, error) {
	if err := s.validateBreakPolicy(ctx, p); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	for i := range p.Windows {
		if p.Windows[i].ID == uuid.Nil {
			p.Windows[i].ID = uuid.New()
		}
		p.Windows[i].PolicyID = p.ID
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.breakPolicies.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("break policy created",
		"org_id", p.OrganizationID,
		"policy_id", p.ID,
		"scope", p.Scope(),
		"tracking_mode", p.TrackingMode,
	)
	return p, nil
}

// GetBreakPolicy returns a break policy by id within the organization.
func (s *PolicyAdminService) GetBreakPolicy(ctx context.Context, orgID, id uuid.UUID) (*policy.BreakPolicy, error) {
	return s.breakPolicies.GetByID(ctx, orgID, id)
}

// ListBreakPolicies returns all break policies of the organization.
func (s *PolicyAdminService) ListBreakPolicies(ctx context.Context, orgID uuid.UUID) ([]policy.BreakPolicy, error) {
	return s.breakPolicies.List(ctx, orgID)
}

// UpdateBreakPolicy validates and persists changes to a break policy and its
// windows wholesale. Scope is immutable after creation.
func (s *PolicyAdminService) UpdateBreakPolicy(ctx context.Context, p *policy.BreakPolicy) (*policy.BreakPolicy, error) {
	existing, err := s.breakPolicies.GetByID(ctx, p.OrganizationID, p.ID)
	if err != nil {
		return nil, err
	}
	if !scopeEqual(existing.TeamID, p.TeamID) || !scopeEqual(existing.UserID, p.UserID) {
		return nil, fmt.Errorf("%w: policy scope is immutable", policy.ErrValidation)
	}
	if err := s.validateBreakPolicy(ctx, p); err != nil {
		return nil, err
	}

	for i := range p.Windows {
		if p.Windows[i].ID == uuid.Nil {
			p.Windows[i].ID = uuid.New()
		}
		p.Windows[i].PolicyID = p.ID
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.clock.Now()
	if err := s.breakPolicies.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteBreakPolicy removes a break policy, cascading to its windows only.
// Historical break entries are untouched.
func (s *PolicyAdminService) DeleteBreakPolicy(ctx context.Context, orgID, id uuid.UUID) error {
	return s.breakPolicies.Delete(ctx, orgID, id)
}

// validateRestriction checks scope, mode, window ordering inputs, the CEL
// condition, and foreign-scope references.
func (s *PolicyAdminService) validateRestriction(ctx context.Context, r *policy.ClockRestriction) error {
	if r.OrganizationID == uuid.Nil {
		return fmt.Errorf("%w: organization_id is required", policy.ErrValidation)
	}
	if err := r.ValidateScope(); err != nil {
		return err
	}
	if !r.Mode.Valid() {
		return fmt.Errorf("%w: unknown restriction mode %q", policy.ErrValidation, r.Mode)
	}
	if r.MaxDailyClockEvents != nil && *r.MaxDailyClockEvents <= 0 {
		return fmt.Errorf("%w: max_daily_clock_events must be positive", policy.ErrValidation)
	}
	if r.Condition != "" {
		if err := s.evaluator.ValidateExpression(r.Condition); err != nil {
			return fmt.Errorf("%w: condition: %w", policy.ErrValidation, err)
		}
	}
	return s.validateScopeReferences(ctx, r.OrganizationID, r.TeamID, r.UserID)
}

// validateBreakPolicy checks scope, tracking mode, window validity, the
// one-window-per-day invariant, and foreign-scope references.
func (s *PolicyAdminService) validateBreakPolicy(ctx context.Context, p *policy.BreakPolicy) error {
	if p.OrganizationID == uuid.Nil {
		return fmt.Errorf("%w: organization_id is required", policy.ErrValidation)
	}
	if err := p.ValidateScope(); err != nil {
		return err
	}
	if !p.TrackingMode.Valid() {
		return fmt.Errorf("%w: unknown tracking mode %q", policy.ErrValidation, p.TrackingMode)
	}

	seen := make(map[int]bool, len(p.Windows))
	for i := range p.Windows {
		if err := p.Windows[i].Validate(); err != nil {
			return err
		}
		if seen[p.Windows[i].DayOfWeek] {
			return fmt.Errorf("%w: duplicate break window for day %d", policy.ErrConflict, p.Windows[i].DayOfWeek)
		}
		seen[p.Windows[i].DayOfWeek] = true
	}

	return s.validateScopeReferences(ctx, p.OrganizationID, p.TeamID, p.UserID)
}

// validateScopeReferences rejects team or user scopes that belong to a
// different organization.
func (s *PolicyAdminService) validateScopeReferences(ctx context.Context, orgID uuid.UUID, teamID, userID *uuid.UUID) error {
	if teamID != nil {
		ok, err := s.directory.TeamInOrganization(ctx, orgID, *teamID)
		if err != nil {
			return fmt.Errorf("%w: checking team scope: %w", policy.ErrStore, err)
		}
		if !ok {
			return fmt.Errorf("%w: team %s does not belong to the organization", policy.ErrValidation, teamID)
		}
	}
	if userID != nil {
		ok, err := s.directory.UserInOrganization(ctx, orgID, *userID)
		if err != nil {
			return fmt.Errorf("%w: checking user scope: %w", policy.ErrStore, err)
		}
		if !ok {
			return fmt.Errorf("%w: user %s does not belong to the organization", policy.ErrValidation, userID)
		}
	}
	return nil
}

// scopeEqual compares two optional scope ids.
func scopeEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
