package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

const restrictionColumns = `id, organization_id, team_id, user_id, mode,
	clock_in_earliest, clock_in_latest, clock_out_earliest, clock_out_latest,
	condition, enforce_schedule, require_manager_approval,
	max_daily_clock_events, is_active, created_at, updated_at`

// RestrictionStore implements policy.RestrictionStore on SQLite.
type RestrictionStore struct {
	db *sql.DB
}

// NewRestrictionStore creates a restriction store backed by db.
func NewRestrictionStore(db *sql.DB) *RestrictionStore {
	return &RestrictionStore{db: db}
}

// Create inserts a restriction. The active-scope uniqueness check and the
// insert share one transaction.
func (s *RestrictionStore) Create(ctx context.Context, r *policy.ClockRestriction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", policy.ErrStore, err)
	}
	defer tx.Rollback()

	if r.IsActive {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM clock_restrictions
			 WHERE organization_id = ? AND team_id IS ? AND user_id IS ? AND is_active = 1`,
			r.OrganizationID.String(), uuidText(r.TeamID), uuidText(r.UserID),
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("%w: checking scope: %w", policy.ErrStore, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: active restriction already exists for scope", policy.ErrConflict)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO clock_restrictions (`+restrictionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.OrganizationID.String(), uuidText(r.TeamID), uuidText(r.UserID),
		string(r.Mode),
		todInt(r.ClockInEarliest), todInt(r.ClockInLatest),
		todInt(r.ClockOutEarliest), todInt(r.ClockOutLatest),
		r.Condition, r.EnforceSchedule, r.RequireManagerApproval,
		intPtr(r.MaxDailyClockEvents), r.IsActive,
		timeText(r.CreatedAt), timeText(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: inserting restriction: %w", policy.ErrStore, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", policy.ErrStore, err)
	}
	return nil
}

// GetByID returns the restriction, or ErrNotFound.
func (s *RestrictionStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*policy.ClockRestriction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+restrictionColumns+` FROM clock_restrictions
		 WHERE id = ? AND organization_id = ?`,
		id.String(), orgID.String())
	r, err := scanRestriction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: restriction %s", policy.ErrNotFound, id)
	}
	return r, err
}

// List returns all restrictions of the organization, newest first.
func (s *RestrictionStore) List(ctx context.Context, orgID uuid.UUID) ([]policy.ClockRestriction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+restrictionColumns+` FROM clock_restrictions
		 WHERE organization_id = ? ORDER BY created_at DESC`,
		orgID.String())
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
	return out, nil
}

// Update replaces the stored restriction's forward-looking fields. An update
// that leaves the restriction active re-checks scope uniqueness so a
// reactivation cannot join an already active restriction.
func (s *RestrictionStore) Update(ctx context.Context, r *policy.ClockRestriction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", policy.ErrStore, err)
	}
	defer tx.Rollback()

	if r.IsActive {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM clock_restrictions
			 WHERE organization_id = ? AND team_id IS ? AND user_id IS ?
			   AND is_active = 1 AND id != ?`,
			r.OrganizationID.String(), uuidText(r.TeamID), uuidText(r.UserID),
			r.ID.String(),
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("%w: checking scope: %w", policy.ErrStore, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: active restriction already exists for scope", policy.ErrConflict)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE clock_restrictions SET
			mode = ?,
			clock_in_earliest = ?, clock_in_latest = ?,
			clock_out_earliest = ?, clock_out_latest = ?,
			condition = ?, enforce_schedule = ?, require_manager_approval = ?,
			max_daily_clock_events = ?, is_active = ?, updated_at = ?
		 WHERE id = ? AND organization_id = ?`,
		string(r.Mode),
		todInt(r.ClockInEarliest), todInt(r.ClockInLatest),
		todInt(r.ClockOutEarliest), todInt(r.ClockOutLatest),
		r.Condition, r.EnforceSchedule, r.RequireManagerApproval,
		intPtr(r.MaxDailyClockEvents), r.IsActive, timeText(r.UpdatedAt),
		r.ID.String(), r.OrganizationID.String(),
	)
	if err != nil {
		return fmt.Errorf("%w: updating restriction: %w", policy.ErrStore, err)
	}
	if err := requireRowHit(res, r.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", policy.ErrStore, err)
	}
	return nil
}

// Delete removes the restriction.
func (s *RestrictionStore) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM clock_restrictions WHERE id = ? AND organization_id = ?`,
		id.String(), orgID.String())
	if err != nil {
		return fmt.Errorf("%w: deleting restriction: %w", policy.ErrStore, err)
	}
	return requireRowHit(res, id)
}

// FindActiveForUser returns the active user-scoped restriction, or nil.
func (s *RestrictionStore) FindActiveForUser(ctx context.Context, orgID, userID uuid.UUID) (*policy.ClockRestriction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+restrictionColumns+` FROM clock_restrictions
		 WHERE organization_id = ? AND user_id = ? AND is_active = 1
		 ORDER BY created_at DESC LIMIT 1`,
		orgID.String(), userID.String())
	r, err := scanRestriction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// FindActiveForTeams returns the most recently created active team-scoped
// restriction among teamIDs, or nil.
func (s *RestrictionStore) FindActiveForTeams(ctx context.Context, orgID uuid.UUID, teamIDs []uuid.UUID) (*policy.ClockRestriction, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	placeholders, args := idArgs(orgID, teamIDs)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+restrictionColumns+` FROM clock_restrictions
		 WHERE organization_id = ? AND team_id IN (`+placeholders+`)
		   AND user_id IS NULL AND is_active = 1
		 ORDER BY created_at DESC LIMIT 1`,
		args...)
	r, err := scanRestriction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// FindActiveForOrganization returns the active organization-wide restriction,
// or nil.
func (s *RestrictionStore) FindActiveForOrganization(ctx context.Context, orgID uuid.UUID) (*policy.ClockRestriction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+restrictionColumns+` FROM clock_restrictions
		 WHERE organization_id = ? AND team_id IS NULL AND user_id IS NULL
		   AND is_active = 1
		 ORDER BY created_at DESC LIMIT 1`,
		orgID.String())
	r, err := scanRestriction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRestriction(row rowScanner) (*policy.ClockRestriction, error) {
	var (
		r                          policy.ClockRestriction
		idStr, orgStr, mode        string
		teamStr, userStr           sql.NullString
		inE, inL, outE, outL       sql.NullInt64
		maxEvents                  sql.NullInt64
		createdStr, updatedStr     string
	)
	err := row.Scan(&idStr, &orgStr, &teamStr, &userStr, &mode,
		&inE, &inL, &outE, &outL,
		&r.Condition, &r.EnforceSchedule, &r.RequireManagerApproval,
		&maxEvents, &r.IsActive, &createdStr, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
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
	if r.TeamID, err = scanUUID(teamStr); err != nil {
		return nil, err
	}
	if r.UserID, err = scanUUID(userStr); err != nil {
		return nil, err
	}
	r.Mode = policy.RestrictionMode(mode)
	r.ClockInEarliest = scanTod(inE)
	r.ClockInLatest = scanTod(inL)
	r.ClockOutEarliest = scanTod(outE)
	r.ClockOutLatest = scanTod(outL)
	r.MaxDailyClockEvents = scanIntPtr(maxEvents)
	if r.CreatedAt, err = scanTime(createdStr); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = scanTime(updatedStr); err != nil {
		return nil, err
	}
	return &r, nil
}

func requireRowHit(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", policy.ErrStore, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", policy.ErrNotFound, id)
	}
	return nil
}

func idArgs(orgID uuid.UUID, ids []uuid.UUID) (string, []any) {
	args := make([]any, 0, len(ids)+1)
	args = append(args, orgID.String())
	for _, id := range ids {
		args = append(args, id.String())
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}

// Compile-time interface verification.
var _ policy.RestrictionStore = (*RestrictionStore)(nil)
