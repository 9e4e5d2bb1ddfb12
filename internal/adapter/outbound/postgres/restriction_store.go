package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

const restrictionColumns = `id::text, organization_id::text, team_id::text, user_id::text,
	mode, clock_in_earliest, clock_in_latest, clock_out_earliest, clock_out_latest,
	condition, enforce_schedule, require_manager_approval,
	max_daily_clock_events, is_active, created_at, updated_at`

// RestrictionStore implements policy.RestrictionStore on PostgreSQL.
type RestrictionStore struct {
	pool Beginner
}

// NewRestrictionStore creates a restriction store backed by pool.
func NewRestrictionStore(pool Beginner) *RestrictionStore {
	return &RestrictionStore{pool: pool}
}

// Create inserts a restriction. The active-scope uniqueness check and the
// insert share one transaction.
func (s *RestrictionStore) Create(ctx context.Context, r *policy.ClockRestriction) error {
	tx, err := begin(ctx, s.pool, r.OrganizationID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if r.IsActive {
		var n int
		err := tx.QueryRow(ctx, `
		SELECT count(*) FROM clock_restrictions
		WHERE organization_id = $1::uuid
		  AND team_id IS NOT DISTINCT FROM $2::uuid
		  AND user_id IS NOT DISTINCT FROM $3::uuid
		  AND is_active
		`, r.OrganizationID.String(), uuidText(r.TeamID), uuidText(r.UserID)).Scan(&n)
		if err != nil {
			return fmt.Errorf("%w: checking scope: %w", policy.ErrStore, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: active restriction already exists for scope", policy.ErrConflict)
		}
	}

	_, err = tx.Exec(ctx, `
	INSERT INTO clock_restrictions (
		id, organization_id, team_id, user_id, mode,
		clock_in_earliest, clock_in_latest, clock_out_earliest, clock_out_latest,
		condition, enforce_schedule, require_manager_approval,
		max_daily_clock_events, is_active, created_at, updated_at
	) VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, r.ID.String(), r.OrganizationID.String(), uuidText(r.TeamID), uuidText(r.UserID),
		string(r.Mode),
		todInt(r.ClockInEarliest), todInt(r.ClockInLatest),
		todInt(r.ClockOutEarliest), todInt(r.ClockOutLatest),
		r.Condition, r.EnforceSchedule, r.RequireManagerApproval,
		r.MaxDailyClockEvents, r.IsActive, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: inserting restriction: %w", policy.ErrStore, err)
	}
	return commit(ctx, tx)
}

// GetByID returns the restriction, or ErrNotFound.
func (s *RestrictionStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*policy.ClockRestriction, error) {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	row := tx.QueryRow(ctx, `
	SELECT `+restrictionColumns+` FROM clock_restrictions
	WHERE id = $1::uuid AND organization_id = $2::uuid
	`, id.String(), orgID.String())
	r, err := scanRestriction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: restriction %s", policy.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, commit(ctx, tx)
}

// List returns all restrictions of the organization, newest first.
func (s *RestrictionStore) List(ctx context.Context, orgID uuid.UUID) ([]policy.ClockRestriction, error) {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
	SELECT `+restrictionColumns+` FROM clock_restrictions
	WHERE organization_id = $1::uuid
	ORDER BY created_at DESC
	`, orgID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: listing restrictions: %w", policy.ErrStore, err)
	}
	defer rows.Close()

	var out []policy.ClockRestriction
	for rows.Next() {
		r, err := scanRestriction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing restrictions: %w", policy.ErrStore, err)
	}
	return out, commit(ctx, tx)
}

// Update replaces the stored restriction's forward-looking fields. An update
// that leaves the restriction active re-checks scope uniqueness so a
// reactivation cannot join an already active restriction.
func (s *RestrictionStore) Update(ctx context.Context, r *policy.ClockRestriction) error {
	tx, err := begin(ctx, s.pool, r.OrganizationID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if r.IsActive {
		var n int
		err := tx.QueryRow(ctx, `
		SELECT count(*) FROM clock_restrictions
		WHERE organization_id = $1::uuid
		  AND team_id IS NOT DISTINCT FROM $2::uuid
		  AND user_id IS NOT DISTINCT FROM $3::uuid
		  AND is_active AND id != $4::uuid
		`, r.OrganizationID.String(), uuidText(r.TeamID), uuidText(r.UserID),
			r.ID.String()).Scan(&n)
		if err != nil {
			return fmt.Errorf("%w: checking scope: %w", policy.ErrStore, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: active restriction already exists for scope", policy.ErrConflict)
		}
	}

	tag, err := tx.Exec(ctx, `
	UPDATE clock_restrictions SET
		mode = $1,
		clock_in_earliest = $2, clock_in_latest = $3,
		clock_out_earliest = $4, clock_out_latest = $5,
		condition = $6, enforce_schedule = $7, require_manager_approval = $8,
		max_daily_clock_events = $9, is_active = $10, updated_at = $11
	WHERE id = $12::uuid AND organization_id = $13::uuid
	`, string(r.Mode),
		todInt(r.ClockInEarliest), todInt(r.ClockInLatest),
		todInt(r.ClockOutEarliest), todInt(r.ClockOutLatest),
		r.Condition, r.EnforceSchedule, r.RequireManagerApproval,
		r.MaxDailyClockEvents, r.IsActive, r.UpdatedAt,
		r.ID.String(), r.OrganizationID.String())
	if err != nil {
		return fmt.Errorf("%w: updating restriction: %w", policy.ErrStore, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: restriction %s", policy.ErrNotFound, r.ID)
	}
	return commit(ctx, tx)
}

// Delete removes the restriction.
func (s *RestrictionStore) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
	DELETE FROM clock_restrictions WHERE id = $1::uuid AND organization_id = $2::uuid
	`, id.String(), orgID.String())
	if err != nil {
		return fmt.Errorf("%w: deleting restriction: %w", policy.ErrStore, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: restriction %s", policy.ErrNotFound, id)
	}
	return commit(ctx, tx)
}

// FindActiveForUser returns the active user-scoped restriction, or nil.
func (s *RestrictionStore) FindActiveForUser(ctx context.Context, orgID, userID uuid.UUID) (*policy.ClockRestriction, error) {
	return s.findOne(ctx, orgID, `
	SELECT `+restrictionColumns+` FROM clock_restrictions
	WHERE organization_id = $1::uuid AND user_id = $2::uuid AND is_active
	ORDER BY created_at DESC LIMIT 1
	`, orgID.String(), userID.String())
}

// FindActiveForTeams returns the most recently created active team-scoped
// restriction among teamIDs, or nil.
func (s *RestrictionStore) FindActiveForTeams(ctx context.Context, orgID uuid.UUID, teamIDs []uuid.UUID) (*policy.ClockRestriction, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	return s.findOne(ctx, orgID, `
	SELECT `+restrictionColumns+` FROM clock_restrictions
	WHERE organization_id = $1::uuid AND team_id = ANY($2::uuid[])
	  AND user_id IS NULL AND is_active
	ORDER BY created_at DESC LIMIT 1
	`, orgID.String(), uuidTexts(teamIDs))
}

// FindActiveForOrganization returns the active organization-wide restriction,
// or nil.
func (s *RestrictionStore) FindActiveForOrganization(ctx context.Context, orgID uuid.UUID) (*policy.ClockRestriction, error) {
	return s.findOne(ctx, orgID, `
	SELECT `+restrictionColumns+` FROM clock_restrictions
	WHERE organization_id = $1::uuid AND team_id IS NULL AND user_id IS NULL
	  AND is_active
	ORDER BY created_at DESC LIMIT 1
	`, orgID.String())
}

func (s *RestrictionStore) findOne(ctx context.Context, orgID uuid.UUID, query string, args ...any) (*policy.ClockRestriction, error) {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	r, err := scanRestriction(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, commit(ctx, tx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRestriction(row rowScanner) (*policy.ClockRestriction, error) {
	var (
		r                    policy.ClockRestriction
		idStr, orgStr, mode  string
		teamStr, userStr     *string
		inE, inL, outE, outL *int
	)
	err := row.Scan(&idStr, &orgStr, &teamStr, &userStr, &mode,
		&inE, &inL, &outE, &outL,
		&r.Condition, &r.EnforceSchedule, &r.RequireManagerApproval,
		&r.MaxDailyClockEvents, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scanning restriction: %w", policy.ErrStore, err)
	}

	if r.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, idStr, err)
	}
	if r.OrganizationID, err = uuid.Parse(orgStr); err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, orgStr, err)
	}
	if r.TeamID, err = parseUUIDPtr(teamStr); err != nil {
		return nil, err
	}
	if r.UserID, err = parseUUIDPtr(userStr); err != nil {
		return nil, err
	}
	r.Mode = policy.RestrictionMode(mode)
	r.ClockInEarliest = todPtr(inE)
	r.ClockInLatest = todPtr(inL)
	r.ClockOutEarliest = todPtr(outE)
	r.ClockOutLatest = todPtr(outL)
	return &r, nil
}

func uuidText(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func uuidTexts(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDPtr(s *string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*s))
	if err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, *s, err)
	}
	return &id, nil
}

func todInt(t *policy.TimeOfDay) *int {
	if t == nil {
		return nil
	}
	n := int(*t)
	return &n
}

func todPtr(n *int) *policy.TimeOfDay {
	if n == nil {
		return nil
	}
	t := policy.TimeOfDay(*n)
	return &t
}

// Compile-time interface verification.
var _ policy.RestrictionStore = (*RestrictionStore)(nil)
