package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

const breakPolicyColumns = `id, organization_id, team_id, user_id, name,
	tracking_mode, notify_missing_break, is_active, created_at, updated_at`

// BreakPolicyStore implements policy.BreakPolicyStore on SQLite. Windows live
// in their own table; the unique (policy_id, day_of_week) constraint backs
// the one-window-per-day invariant.
type BreakPolicyStore struct {
	db *sql.DB
}

// NewBreakPolicyStore creates a break policy store backed by db.
func NewBreakPolicyStore(db *sql.DB) *BreakPolicyStore {
	return &BreakPolicyStore{db: db}
}

// Create inserts a policy with its windows in one transaction.
func (s *BreakPolicyStore) Create(ctx context.Context, p *policy.BreakPolicy) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", policy.ErrStore, err)
	}
	defer tx.Rollback()

	if p.IsActive {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM break_policies
			 WHERE organization_id = ? AND team_id IS ? AND user_id IS ? AND is_active = 1`,
			p.OrganizationID.String(), uuidText(p.TeamID), uuidText(p.UserID),
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("%w: checking scope: %w", policy.ErrStore, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: active break policy already exists for scope", policy.ErrConflict)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO break_policies (`+breakPolicyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.OrganizationID.String(), uuidText(p.TeamID), uuidText(p.UserID),
		p.Name, string(p.TrackingMode), p.NotifyMissingBreak, p.IsActive,
		timeText(p.CreatedAt), timeText(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: inserting break policy: %w", policy.ErrStore, err)
	}
	if err := insertWindows(ctx, tx, p.ID, p.Windows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", policy.ErrStore, err)
	}
	return nil
}

// GetByID returns the policy with windows loaded, or ErrNotFound.
func (s *BreakPolicyStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*policy.BreakPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+breakPolicyColumns+` FROM break_policies
		 WHERE id = ? AND organization_id = ?`,
		id.String(), orgID.String())
	p, err := scanBreakPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: break policy %s", policy.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if p.Windows, err = s.loadWindows(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns all break policies of the organization, windows loaded.
func (s *BreakPolicyStore) List(ctx context.Context, orgID uuid.UUID) ([]policy.BreakPolicy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+breakPolicyColumns+` FROM break_policies
		 WHERE organization_id = ? ORDER BY created_at DESC`,
		orgID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: listing break policies: %w", policy.ErrStore, err)
	}
	defer rows.Close()

	var out []policy.BreakPolicy
	for rows.Next() {
		p, err := scanBreakPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing break policies: %w", policy.ErrStore, err)
	}
	for i := range out {
		if out[i].Windows, err = s.loadWindows(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Update replaces the stored policy and rewrites its windows wholesale.
func (s *BreakPolicyStore) Update(ctx context.Context, p *policy.BreakPolicy) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", policy.ErrStore, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE break_policies SET
			name = ?, tracking_mode = ?, notify_missing_break = ?,
			is_active = ?, updated_at = ?
		 WHERE id = ? AND organization_id = ?`,
		p.Name, string(p.TrackingMode), p.NotifyMissingBreak,
		p.IsActive, timeText(p.UpdatedAt),
		p.ID.String(), p.OrganizationID.String(),
	)
	if err != nil {
		return fmt.Errorf("%w: updating break policy: %w", policy.ErrStore, err)
	}
	if err := requireRowHit(res, p.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM break_windows WHERE policy_id = ?`, p.ID.String()); err != nil {
		return fmt.Errorf("%w: clearing windows: %w", policy.ErrStore, err)
	}
	if err := insertWindows(ctx, tx, p.ID, p.Windows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", policy.ErrStore, err)
	}
	return nil
}

// Delete removes the policy; the windows cascade.
func (s *BreakPolicyStore) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM break_policies WHERE id = ? AND organization_id = ?`,
		id.String(), orgID.String())
	if err != nil {
		return fmt.Errorf("%w: deleting break policy: %w", policy.ErrStore, err)
	}
	return requireRowHit(res, id)
}

// FindActiveForUser returns the active user-scoped policy, or nil.
func (s *BreakPolicyStore) FindActiveForUser(ctx context.Context, orgID, userID uuid.UUID) (*policy.BreakPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+breakPolicyColumns+` FROM break_policies
		 WHERE organization_id = ? AND user_id = ? AND is_active = 1
		 ORDER BY created_at DESC LIMIT 1`,
		orgID.String(), userID.String())
	return s.finishFind(ctx, row)
}

// FindActiveForTeams returns the most recently created active team-scoped
// policy among teamIDs, or nil.
func (s *BreakPolicyStore) FindActiveForTeams(ctx context.Context, orgID uuid.UUID, teamIDs []uuid.UUID) (*policy.BreakPolicy, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	placeholders, args := idArgs(orgID, teamIDs)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+breakPolicyColumns+` FROM break_policies
		 WHERE organization_id = ? AND team_id IN (`+placeholders+`)
		   AND user_id IS NULL AND is_active = 1
		 ORDER BY created_at DESC LIMIT 1`,
		args...)
	return s.finishFind(ctx, row)
}

// FindActiveForOrganization returns the active organization-wide policy, or
// nil.
func (s *BreakPolicyStore) FindActiveForOrganization(ctx context.Context, orgID uuid.UUID) (*policy.BreakPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+breakPolicyColumns+` FROM break_policies
		 WHERE organization_id = ? AND team_id IS NULL AND user_id IS NULL
		   AND is_active = 1
		 ORDER BY created_at DESC LIMIT 1`,
		orgID.String())
	return s.finishFind(ctx, row)
}

func (s *BreakPolicyStore) finishFind(ctx context.Context, row rowScanner) (*policy.BreakPolicy, error) {
	p, err := scanBreakPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Windows, err = s.loadWindows(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *BreakPolicyStore) loadWindows(ctx context.Context, policyID uuid.UUID) ([]policy.BreakWindow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, policy_id, day_of_week, window_start, window_end,
			min_duration_minutes, max_duration_minutes, is_mandatory
		 FROM break_windows WHERE policy_id = ? ORDER BY day_of_week`,
		policyID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: loading windows: %w", policy.ErrStore, err)
	}
	defer rows.Close()

	var out []policy.BreakWindow
	for rows.Next() {
		var (
			w                 policy.BreakWindow
			idStr, pidStr     string
			startSec, endSec  int
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

func insertWindows(ctx context.Context, tx *sql.Tx, policyID uuid.UUID, windows []policy.BreakWindow) error {
	for _, w := range windows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO break_windows (id, policy_id, day_of_week, window_start,
				window_end, min_duration_minutes, max_duration_minutes, is_mandatory)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			w.ID.String(), policyID.String(), w.DayOfWeek,
			int(w.WindowStart), int(w.WindowEnd),
			w.MinDurationMinutes, w.MaxDurationMinutes, w.IsMandatory,
		)
		if err != nil {
			return fmt.Errorf("%w: inserting window for day %d: %w", policy.ErrConflict, w.DayOfWeek, err)
		}
	}
	return nil
}

func scanBreakPolicy(row rowScanner) (*policy.BreakPolicy, error) {
	var (
		p                      policy.BreakPolicy
		idStr, orgStr, mode    string
		teamStr, userStr       sql.NullString
		createdStr, updatedStr string
	)
	err := row.Scan(&idStr, &orgStr, &teamStr, &userStr, &p.Name, &mode,
		&p.NotifyMissingBreak, &p.IsActive, &createdStr, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
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
	if p.TeamID, err = scanUUID(teamStr); err != nil {
		return nil, err
	}
	if p.UserID, err = scanUUID(userStr); err != nil {
		return nil, err
	}
	p.TrackingMode = policy.TrackingMode(mode)
	if p.CreatedAt, err = scanTime(createdStr); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = scanTime(updatedStr); err != nil {
		return nil, err
	}
	return &p, nil
}

// Compile-time interface verification.
var _ policy.BreakPolicyStore = (*BreakPolicyStore)(nil)
