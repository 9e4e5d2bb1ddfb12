package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shiftgate/shiftgate/internal/domain/override"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

const overrideColumns = `id::text, organization_id::text, user_id::text, clock_entry_id::text,
	requested_action, requested_at, reason, status, reviewed_by::text, reviewed_at,
	review_notes, created_at`

// OverrideStore implements override.Store on PostgreSQL.
type OverrideStore struct {
	pool Beginner
}

// NewOverrideStore creates an override request store backed by pool.
func NewOverrideStore(pool Beginner) *OverrideStore {
	return &OverrideStore{pool: pool}
}

// Create inserts a request. The duplicate-pending check and the insert share
// one transaction.
func (s *OverrideStore) Create(ctx context.Context, r *override.Request) error {
	tx, err := begin(ctx, s.pool, r.OrganizationID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var n int
	if err := tx.QueryRow(ctx, `
	SELECT count(*) FROM override_requests
	WHERE organization_id = $1::uuid AND user_id = $2::uuid
	  AND requested_action = $3 AND status = $4
	`, r.OrganizationID.String(), r.UserID.String(),
		string(r.RequestedAction), string(override.StatusPending)).Scan(&n); err != nil {
		return fmt.Errorf("%w: checking pending: %w", policy.ErrStore, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: pending override already exists for action", policy.ErrConflict)
	}

	_, err = tx.Exec(ctx, `
	INSERT INTO override_requests (
		id, organization_id, user_id, clock_entry_id, requested_action,
		requested_at, reason, status, reviewed_by, reviewed_at, review_notes,
		created_at
	) VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5, $6, $7, $8, $9::uuid, $10, $11, $12)
	`, r.ID.String(), r.OrganizationID.String(), r.UserID.String(),
		uuidText(r.ClockEntryID), string(r.RequestedAction), r.RequestedAt,
		r.Reason, string(r.Status), uuidText(r.ReviewedBy), r.ReviewedAt,
		r.ReviewNotes, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: inserting override request: %w", policy.ErrStore, err)
	}
	return commit(ctx, tx)
}

// GetByID returns the request, or ErrNotFound.
func (s *OverrideStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*override.Request, error) {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	row := tx.QueryRow(ctx, `
	SELECT `+overrideColumns+` FROM override_requests
	WHERE id = $1::uuid AND organization_id = $2::uuid
	`, id.String(), orgID.String())
	r, err := scanOverride(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: override request %s", policy.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, commit(ctx, tx)
}

// List returns the organization's requests matching the filter, newest first.
func (s *OverrideStore) List(ctx context.Context, orgID uuid.UUID, f override.ListFilter) ([]override.Request, error) {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	q := `SELECT ` + overrideColumns + ` FROM override_requests WHERE organization_id = $1::uuid`
	args := []any{orgID.String()}
	if f.UserID != nil {
		args = append(args, f.UserID.String())
		q += fmt.Sprintf(` AND user_id = $%d::uuid`, len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	q += ` ORDER BY created_at DESC`

	rows, err := tx.Query(ctx, q, args...)
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
	return out, commit(ctx, tx)
}

// Update replaces the stored request.
func (s *OverrideStore) Update(ctx context.Context, r *override.Request) error {
	tx, err := begin(ctx, s.pool, r.OrganizationID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
	UPDATE override_requests SET
		clock_entry_id = $1::uuid, status = $2, reviewed_by = $3::uuid,
		reviewed_at = $4, review_notes = $5
	WHERE id = $6::uuid AND organization_id = $7::uuid
	`, uuidText(r.ClockEntryID), string(r.Status),
		uuidText(r.ReviewedBy), r.ReviewedAt, r.ReviewNotes,
		r.ID.String(), r.OrganizationID.String())
	if err != nil {
		return fmt.Errorf("%w: updating override request: %w", policy.ErrStore, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: override request %s", policy.ErrNotFound, r.ID)
	}
	return commit(ctx, tx)
}

// FindPending returns the user's pending request for the action, or nil.
func (s *OverrideStore) FindPending(ctx context.Context, orgID, userID uuid.UUID, action policy.ClockAction) (*override.Request, error) {
	return s.findOne(ctx, orgID, `
	SELECT `+overrideColumns+` FROM override_requests
	WHERE organization_id = $1::uuid AND user_id = $2::uuid
	  AND requested_action = $3 AND status = $4
	ORDER BY created_at DESC LIMIT 1
	`, orgID.String(), userID.String(), string(action), string(override.StatusPending))
}

// FindConsumable returns the newest unconsumed approved request created after
// the cut-off, or nil.
func (s *OverrideStore) FindConsumable(ctx context.Context, orgID, userID uuid.UUID, action policy.ClockAction, createdAfter time.Time) (*override.Request, error) {
	return s.findOne(ctx, orgID, `
	SELECT `+overrideColumns+` FROM override_requests
	WHERE organization_id = $1::uuid AND user_id = $2::uuid
	  AND requested_action = $3 AND status = ANY($4::text[])
	  AND clock_entry_id IS NULL AND created_at > $5
	ORDER BY created_at DESC LIMIT 1
	`, orgID.String(), userID.String(), string(action),
		[]string{string(override.StatusApproved), string(override.StatusAutoApproved)},
		createdAfter)
}

func (s *OverrideStore) findOne(ctx context.Context, orgID uuid.UUID, query string, args ...any) (*override.Request, error) {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	r, err := scanOverride(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, commit(ctx, tx)
}

func scanOverride(row rowScanner) (*override.Request, error) {
	var (
		r                      override.Request
		idStr, orgStr, userStr string
		entryStr, reviewerStr  *string
		action, status         string
	)
	err := row.Scan(&idStr, &orgStr, &userStr, &entryStr, &action,
		&r.RequestedAt, &r.Reason, &status, &reviewerStr, &r.ReviewedAt,
		&r.ReviewNotes, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
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
	if r.ClockEntryID, err = parseUUIDPtr(entryStr); err != nil {
		return nil, err
	}
	if r.ReviewedBy, err = parseUUIDPtr(reviewerStr); err != nil {
		return nil, err
	}
	r.RequestedAction = policy.ClockAction(action)
	r.Status = override.Status(status)
	return &r, nil
}

// Compile-time interface verification.
var _ override.Store = (*OverrideStore)(nil)
