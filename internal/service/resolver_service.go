package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
	"github.com/shiftgate/shiftgate/internal/domain/team"
)

// ResolverService implements the policy cascade: user level overrides team
// level, which overrides organization level. The winning policy is returned
// wholesale with its source level; fields are never merged across levels.
//
// Resolution hits the stores on every call. Effective policies are derived
// read models and are never cached between requests.
type ResolverService struct {
	restrictions  policy.RestrictionStore
	breakPolicies policy.BreakPolicyStore
	directory     team.Directory
	logger        *slog.Logger
}

// NewResolverService creates a ResolverService.
func NewResolverService(
	restrictions policy.RestrictionStore,
	breakPolicies policy.BreakPolicyStore,
	directory team.Directory,
	logger *slog.Logger,
) *ResolverService {
	return &ResolverService{
		restrictions:  restrictions,
		breakPolicies: breakPolicies,
		directory:     directory,
		logger:        logger,
	}
}

// ResolveRestriction returns the effective clock restriction for the user, or
// nil when no active restriction applies at any level. Callers interpret nil
// as fully permissive.
func (s *ResolverService) ResolveRestriction(ctx context.Context, orgID, userID uuid.UUID) (*policy.EffectiveRestriction, error) {
	if r, err := s.restrictions.FindActiveForUser(ctx, orgID, userID); err != nil {
		return nil, err
	} else if r != nil {
		return &policy.EffectiveRestriction{Restriction: *r, Source: policy.SourceUser}, nil
	}

	teamIDs, err := s.directory.TeamsForUser(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing teams for user: %w", policy.ErrStore, err)
	}
	if len(teamIDs) > 0 {
		if r, err := s.restrictions.FindActiveForTeams(ctx, orgID, teamIDs); err != nil {
			return nil, err
		} else if r != nil {
			return &policy.EffectiveRestriction{Restriction: *r, Source: policy.SourceTeam}, nil
		}
	}

	if r, err := s.restrictions.FindActiveForOrganization(ctx, orgID); err != nil {
		return nil, err
	} else if r != nil {
		return &policy.EffectiveRestriction{Restriction: *r, Source: policy.SourceOrganization}, nil
	}

	return nil, nil
}

// ResolveBreakPolicy returns the effective break policy for the user, or nil
// when none applies. Callers interpret nil as "no break policy — skip
// deduction".
func (s *ResolverService) ResolveBreakPolicy(ctx context.Context, orgID, userID uuid.UUID) (*policy.EffectiveBreakPolicy, error) {
	if p, err := s.breakPolicies.FindActiveForUser(ctx, orgID, userID); err != nil {
		return nil, err
	} else if p != nil {
		return &policy.EffectiveBreakPolicy{Policy: *p, Source: policy.SourceUser}, nil
	}

	teamIDs, err := s.directory.TeamsForUser(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing teams for user: %w", policy.ErrStore, err)
	}
	if len(teamIDs) > 0 {
		if p, err := s.breakPolicies.FindActiveForTeams(ctx, orgID, teamIDs); err != nil {
			return nil, err
		} else if p != nil {
			return &policy.EffectiveBreakPolicy{Policy: *p, Source: policy.SourceTeam}, nil
		}
	}

	if p, err := s.breakPolicies.FindActiveForOrganization(ctx, orgID); err != nil {
		return nil, err
	} else if p != nil {
		return &policy.EffectiveBreakPolicy{Policy: *p, Source: policy.SourceOrganization}, nil
	}

	return nil, nil
}
