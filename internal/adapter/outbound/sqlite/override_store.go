package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/override"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

const overrideColumns = `id, organization_id, user_id, clock_entry_id,
	requested_action, requested_at, reason, status, reviewed_by, reviewed_at,
	review_notes, created_at`

// OverrideStore implements override.Store on SQLite.
type OverrideStore struct {
	db *sql.DB
}

// NewOverrideStore creates an override request store backed by db.
func NewOverrideStore(db *sql.DB) *OverrideStore {
	return &OverrideStore{db: db}
}

// Create inserts a request. The duplicate-pending check and the insert share
// one transaction.
func (s *OverrideStore) Create(ctx context.Context, r *override.Request) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", policy.ErrStore, err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM override_requests
		 WHERE organization_id = ? AND user_id = ? AND requested_action = ?
		   AND status = ?`,
		r.OrganizationID.String(), r.UserID.String(),
		string(r.RequestedAction), string(override.StatusPending),
	).Scan(&n); err != nil {
		return fmt.Errorf("%w: checking pending: %w", policy.ErrStore, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: pending override already exists for action", policy.ErrConflict)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO override_requests (`+overrideColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.OrganizationID.String(), r.UserID.String(),
		uuidText(r.ClockEntryID), string(r.RequestedAction), timeText(r.RequestedAt),
		r.Reason, string(r.Status), uuidText(r.ReviewedBy), timePtrText(r.ReviewedAt),
		r.ReviewNotes, timeText(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: inserting override request: %w", policy.ErrStore, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", policy.ErrStore, err)
	}
	return nil
}

// GetByID returns the request, or ErrNotFound.
func (s *OverrideStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*override.Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM override_requests
		 WHERE id = ? AND organization_id = ?`,
		id.String(), orgID.String())
	r, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: override request %s", policy.ErrNotFound, id)
	}
	return r, err
}

// List returns the organization's requests matching the filter, newest first.
func (s *OverrideStore) List(ctx context.Context, orgID uuid.UUID, f override.ListFilter) ([]override.Request, error) {
	q := `SELECT ` + overrideColumns + ` FROM override_requests WHERE organization_id = ?`
	args := []any{orgID.String()}
	if f.UserID != nil {
		q += ` AND user_id = ?`
		args = append(args, f.UserID.String())
	}
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: listing override requests: %w", policy.ErrStore, err)
	}
	defer rows.Close()

	var out []override.Request
	for rows.Next() {
		r, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing override requests: %w", policy.ErrStore, err)
	}
	return out, nil
}

// Update replaces the stored request.
func (s *OverrideStore) Update(ctx context.Context, r *override.Request) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE override_requests SET
			clock_entry_id = ?, status = ?, reviewed_by = ?, reviewed_at = ?,
			review_notes = ?
		 WHERE id = ? AND organization_id = ?`,
		uuidText(r.ClockEntryID), string(r.Status),
		uuidText(r.ReviewedBy), timePtrText(r.ReviewedAt), r.ReviewNotes,
		r.ID.String(), r.OrganizationID.String(),
	)
	if err != nil {
		return fmt.Errorf("%w: updating override request: %w", policy.ErrStore, err)
	}
	return requireRowHit(res, r.ID)
}

// FindPending returns the user's pending request for the action, or nil.
func (s *OverrideStore) FindPending(ctx context.Context, orgID, userID uuid.UUID, action policy.ClockAction) (*override.Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM override_requests
		 WHERE organization_id = ? AND user_id = ? AND requested_action = ?
		   AND status = ?
		 ORDER BY created_at DESC LIMIT 1`,
		orgID.String(), userID.String(), string(action), string(override.StatusPending))
	r, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// FindConsumable returns the newest unconsumed approved request created after
// the cut-off, or nil.
func (s *OverrideStore) FindConsumable(ctx context.Context, orgID, userID uuid.UUID, action policy.ClockAction, createdAfter time.Time) (*override.Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM override_requests
		 WHERE organization_id = ? AND user_id = ? AND requested_action = ?
		   AND status IN (?, ?) AND clock_entry_id IS NULL AND created_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		orgID.String(), userID.String(), string(action),
		string(override.StatusApproved), string(override.StatusAutoApproved),
		timeText(createdAfter))
	r, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func scanOverride(row rowScanner) (*override.Request, error) {
	var (
		r                       override.Request
		idStr, orgStr, userStr  string
		entryStr, reviewerStr   sql.NullString
		action, status          string
		requestedStr, createdAt string
		reviewedStr             sql.NullString
	)
	err := row.Scan(&idStr, &orgStr, &userStr, &entryStr, &action,
		&requestedStr, &r.Reason, &status, &reviewerStr, &reviewedStr,
		&r.ReviewNotes, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scanning override request: %w", policy.ErrStore, err)
	}

	if r.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, idStr, err)
	}
	if r.OrganizationID, err = uuid.Parse(orgStr); err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, orgStr, err)
	}
	if r.UserID, err = uuid.Parse(userStr); err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, userStr, err)
	}
	if r.ClockEntryID, err = scanUUID(entryStr); err != nil {
		return nil, err
	}
	if r.ReviewedBy, err = scanUUID(reviewerStr); err != nil {
		return nil, err
	}
	r.RequestedAction = policy.ClockAction(action)
	r.Status = override.Status(status)
	if r.RequestedAt, err = scanTime(requestedStr); err != nil {
		return nil, err
	}
	if r.ReviewedAt, err = scanTimePtr(reviewedStr); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = scanTime(createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// Compile-time interface verification.
var _ override.Store = (*OverrideStore)(nil)
