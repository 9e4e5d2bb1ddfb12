package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

const breakPolicyColumns = `id::text, organization_id::text, team_id::text, user_id::text,
	name, tracking_mode, notify_missing_break, is_active, created_at, updated_at`

// BreakPolicyStore implements policy.BreakPolicyStore on PostgreSQL.
type BreakPolicyStore struct {
	pool Beginner
}

// NewBreakPolicyStore creates a break policy store backed by pool.
func NewBreakPolicyStore(pool Beginner) *BreakPolicyStore {
	return &BreakPolicyStore{pool: pool}
}

// Create inserts a policy with its windows in one transaction.
func (s *BreakPolicyStore) Create(ctx context.Context, p *policy.BreakPolicy) error {
	tx, err := begin(ctx, s.pool, p.OrganizationID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if p.IsActive {
		var n int
		err := tx.QueryRow(ctx, `
		SELECT count(*) FROM break_policies
		WHERE organization_id = $1::uuid
		  AND team_id IS NOT DISTINCT FROM $2::uuid
		  AND user_id IS NOT DISTINCT FROM $3::uuid
		  AND is_active
		`, p.OrganizationID.String(), uuidText(p.TeamID), uuidText(p.UserID)).Scan(&n)
		if err != nil {
			return fmt.Errorf("%w: checking scope: %w", policy.ErrStore, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: active break policy already exists for scope", policy.ErrConflict)
		}
	}

	_, err = tx.Exec(ctx, `
	INSERT INTO break_policies (
		id, organization_id, team_id, user_id, name, tracking_mode,
		notify_missing_break, is_active, created_at, updated_at
	) VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5, $6, $7, $8, $9, $10)
	`, p.ID.String(), p.OrganizationID.String(), uuidText(p.TeamID), uuidText(p.UserID),
		p.Name, string(p.TrackingMode), p.NotifyMissingBreak, p.IsActive,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: inserting break policy: %w", policy.ErrStore, err)
	}
	if err := insertWindows(ctx, tx, p.ID, p.Windows); err != nil {
		return err
	}
	return commit(ctx, tx)
}

// GetByID returns the policy with windows loaded, or ErrNotFound.
func (s *BreakPolicyStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*policy.BreakPolicy, error) {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	row := tx.QueryRow(ctx, `
	SELECT `+breakPolicyColumns+` FROM break_policies
	WHERE id = $1::uuid AND organization_id = $2::uuid
	`, id.String(), orgID.String())
	p, err := scanBreakPolicy(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: break policy %s", policy.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if p.Windows, err = loadWindows(ctx, tx, p.ID); err != nil {
		return nil, err
	}
	return p, commit(ctx, tx)
}

// List returns all break policies of the organization, windows loaded.
func (s *BreakPolicyStore) List(ctx context.Context, orgID uuid.UUID) ([]policy.BreakPolicy, error) {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
	SELECT `+breakPolicyColumns+` FROM break_policies
	WHERE organization_id = $1::uuid
	ORDER BY created_at DESC
	`, orgID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: listing break policies: %w", policy.ErrStore, err)
	}

	var out []policy.BreakPolicy
	for rows.Next() {
		p, err := scanBreakPolicy(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing break policies: %w", policy.ErrStore, err)
	}
	for i := range out {
		if out[i].Windows, err = loadWindows(ctx, tx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, commit(ctx, tx)
}

// Update replaces the stored policy and rewrites its windows wholesale.
func (s *BreakPolicyStore) Update(ctx context.Context, p *policy.BreakPolicy) error {
	tx, err := begin(ctx, s.pool, p.OrganizationID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
	UPDATE break_policies SET
		name = $1, tracking_mode = $2, notify_missing_break = $3,
		is_active = $4, updated_at = $5
	WHERE id = $6::uuid AND organization_id = $7::uuid
	`, p.Name, string(p.TrackingMode), p.NotifyMissingBreak,
		p.IsActive, p.UpdatedAt,
		p.ID.String(), p.OrganizationID.String())
	if err != nil {
		return fmt.Errorf("%w: updating break policy: %w", policy.ErrStore, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: break policy %s", policy.ErrNotFound, p.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM break_windows WHERE policy_id = $1::uuid`, p.ID.String()); err != nil {
		return fmt.Errorf("%w: clearing windows: %w", policy.ErrStore, err)
	}
	if err := insertWindows(ctx, tx, p.ID, p.Windows); err != nil {
		return err
	}
	return commit(ctx, tx)
}

// Delete removes the policy; the windows cascade.
func (s *BreakPolicyStore) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
	DELETE FROM break_policies WHERE id = $1::uuid AND organization_id = $2::uuid
	`, id.String(), orgID.String())
	if err != nil {
		return fmt.Errorf("%w: deleting break policy: %w", policy.ErrStore, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: break policy %s", policy.ErrNotFound, id)
	}
	return commit(ctx, tx)
}

// FindActiveForUser returns the active user-scoped policy, or nil.
func (s *BreakPolicyStore) FindActiveForUser(ctx context.Context, orgID, userID uuid.UUID) (*policy.BreakPolicy, error) {
	return s.findOne(ctx, orgID, `
	SELECT `+breakPolicyColumns+` FROM break_policies
	WHERE organization_id = $1::uuid AND user_id = $2::uuid AND is_active
	ORDER BY created_at DESC LIMIT 1
	`, orgID.String(), userID.String())
}

// FindActiveForTeams returns the most recently created active team-scoped
// policy among teamIDs, or nil.
func (s *BreakPolicyStore) FindActiveForTeams(ctx context.Context, orgID uuid.UUID, teamIDs []uuid.UUID) (*policy.BreakPolicy, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	return s.findOne(ctx, orgID, `
	SELECT `+breakPolicyColumns+` FROM break_policies
	WHERE organization_id = $1::uuid AND team_id = ANY($2::uuid[])
	  AND user_id IS NULL AND is_active
	ORDER BY created_at DESC LIMIT 1
	`, orgID.String(), uuidTexts(teamIDs))
}

// FindActiveForOrganization returns the active organization-wide policy, or
// nil.
func (s *BreakPolicyStore) FindActiveForOrganization(ctx context.Context, orgID uuid.UUID) (*policy.BreakPolicy, error) {
	return s.findOne(ctx, orgID, `
	SELECT `+breakPolicyColumns+` FROM break_policies
	WHERE organization_id = $1::uuid AND team_id IS NULL AND user_id IS NULL
	  AND is_active
	ORDER BY created_at DESC LIMIT 1
	`, orgID.String())
}

func (s *BreakPolicyStore) findOne(ctx context.Context, orgID uuid.UUID, query string, args ...any) (*policy.BreakPolicy, error) {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	p, err := scanBreakPolicy(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Windows, err = loadWindows(ctx, tx, p.ID); err != nil {
		return nil, err
	}
	return p, commit(ctx, tx)
}

func loadWindows(ctx context.Context, tx pgx.Tx, policyID uuid.UUID) ([]policy.BreakWindow, error) {
	rows, err := tx.Query(ctx, `
	SELECT id::text, policy_id::text, day_of_week, window_start, window_end,
		min_duration_minutes, max_duration_minutes, is_mandatory
	FROM break_windows WHERE policy_id = $1::uuid ORDER BY day_of_week
	`, policyID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: loading windows: %w", policy.ErrStore, err)
	}
	defer rows.Close()

	var out []policy.BreakWindow
	for rows.Next() {
		var (
			w                policy.BreakWindow
			idStr, pidStr    string
			startSec, endSec int
		)
		if err := rows.Scan(&idStr, &pidStr, &w.DayOfWeek, &startSec, &endSec,
			&w.MinDurationMinutes, &w.MaxDurationMinutes, &w.IsMandatory); err != nil {
			return nil, fmt.Errorf("%w: scanning window: %w", policy.ErrStore, err)
		}
		if w.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, idStr, err)
		}
		if w.PolicyID, err = uuid.Parse(pidStr); err != nil {
			return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, pidStr, err)
		}
		w.WindowStart = policy.TimeOfDay(startSec)
		w.WindowEnd = policy.TimeOfDay(endSec)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: loading windows: %w", policy.ErrStore, err)
	}
	return out, nil
}

func insertWindows(ctx context.Context, tx pgx.Tx, policyID uuid.UUID, windows []policy.BreakWindow) error {
	for _, w := range windows {
		_, err := tx.Exec(ctx, `
		INSERT INTO break_windows (id, policy_id, day_of_week, window_start,
			window_end, min_duration_minutes, max_duration_minutes, is_mandatory)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8)
		`, w.ID.String(), policyID.String(), w.DayOfWeek,
			int(w.WindowStart), int(w.WindowEnd),
			w.MinDurationMinutes, w.MaxDurationMinutes, w.IsMandatory)
		if err != nil {
			return fmt.Errorf("%w: inserting window for day %d: %w", policy.ErrConflict, w.DayOfWeek, err)
		}
	}
	return nil
}

func scanBreakPolicy(row rowScanner) (*policy.BreakPolicy, error) {
	var (
		p                   policy.BreakPolicy
		idStr, orgStr, mode string
		teamStr, userStr    *string
	)
	err := row.Scan(&idStr, &orgStr, &teamStr, &userStr, &p.Name, &mode,
		&p.NotifyMissingBreak, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scanning break policy: %w", policy.ErrStore, err)
	}

	if p.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, idStr, err)
	}
	if p.OrganizationID, err = uuid.Parse(orgStr); err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, orgStr, err)
	}
	if p.TeamID, err = parseUUIDPtr(teamStr); err != nil {
		return nil, err
	}
	if p.UserID, err = parseUUIDPtr(userStr); err != nil {
		return nil, err
	}
	p.TrackingMode = policy.TrackingMode(mode)
	return &p, nil
}

// Compile-time interface verification.
var _ policy.BreakPolicyStore = (*BreakPolicyStore)(nil)
