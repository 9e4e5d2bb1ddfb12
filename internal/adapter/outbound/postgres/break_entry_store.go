package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shiftgate/shiftgate/internal/domain/breaks"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

const breakEntryColumns = `id::text, organization_id::text, user_id::text, clock_entry_id::text,
	break_start, break_end, duration_minutes`

// BreakEntryStore implements breaks.Store on PostgreSQL.
type BreakEntryStore struct {
	pool Beginner
}

// NewBreakEntryStore creates a break entry store backed by pool.
func NewBreakEntryStore(pool Beginner) *BreakEntryStore {
	return &BreakEntryStore{pool: pool}
}

// Create inserts an entry. The open-break check and the insert share one
// transaction.
func (s *BreakEntryStore) Create(ctx context.Context, e *breaks.Entry) error {
	tx, err := begin(ctx, s.pool, e.OrganizationID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var n int
	err = tx.QueryRow(ctx, `
	SELECT count(*) FROM break_entries
	WHERE organization_id = $1::uuid AND user_id = $2::uuid AND break_end IS NULL
	`, e.OrganizationID.String(), e.UserID.String()).Scan(&n)
	if err != nil {
		return fmt.Errorf("%w: checking open break: %w", policy.ErrStore, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: user already has an open break", policy.ErrConflict)
	}

	_, err = tx.Exec(ctx, `
	INSERT INTO break_entries (
		id, organization_id, user_id, clock_entry_id, break_start, break_end,
		duration_minutes
	) VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5, $6, $7)
	`, e.ID.String(), e.OrganizationID.String(), e.UserID.String(),
		e.ClockEntryID.String(), e.BreakStart, e.BreakEnd, e.DurationMinutes)
	if err != nil {
		return fmt.Errorf("%w: inserting break entry: %w", policy.ErrStore, err)
	}
	return commit(ctx, tx)
}

// GetByID returns the entry, or ErrNotFound.
func (s *BreakEntryStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*breaks.Entry, error) {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	row := tx.QueryRow(ctx, `
	SELECT `+breakEntryColumns+` FROM break_entries
	WHERE id = $1::uuid AND organization_id = $2::uuid
	`, id.String(), orgID.String())
	e, err := scanBreakEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: break entry %s", policy.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return e, commit(ctx, tx)
}

// FindOpen returns the user's open entry, or nil.
func (s *BreakEntryStore) FindOpen(ctx context.Context, orgID, userID uuid.UUID) (*breaks.Entry, error) {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	row := tx.QueryRow(ctx, `
	SELECT `+breakEntryColumns+` FROM break_entries
	WHERE organization_id = $1::uuid AND user_id = $2::uuid AND break_end IS NULL
	LIMIT 1
	`, orgID.String(), userID.String())
	e, err := scanBreakEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, commit(ctx, tx)
}

// Update replaces the stored entry.
func (s *BreakEntryStore) Update(ctx context.Context, e *breaks.Entry) error {
	tx, err := begin(ctx, s.pool, e.OrganizationID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
	UPDATE break_entries SET break_end = $1, duration_minutes = $2
	WHERE id = $3::uuid AND organization_id = $4::uuid
	`, e.BreakEnd, e.DurationMinutes, e.ID.String(), e.OrganizationID.String())
	if err != nil {
		return fmt.Errorf("%w: updating break entry: %w", policy.ErrStore, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: break entry %s", policy.ErrNotFound, e.ID)
	}
	return commit(ctx, tx)
}

// ListForClockEntry returns the entries linked to the clock entry, oldest
// first.
func (s *BreakEntryStore) ListForClockEntry(ctx context.Context, orgID, clockEntryID uuid.UUID) ([]breaks.Entry, error) {
	tx, err := begin(ctx, s.pool, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
	SELECT `+breakEntryColumns+` FROM break_entries
	WHERE organization_id = $1::uuid AND clock_entry_id = $2::uuid
	ORDER BY break_start
	`, orgID.String(), clockEntryID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: listing break entries: %w", policy.ErrStore, err)
	}
	defer rows.Close()

	var out []breaks.Entry
	for rows.Next() {
		e, err := scanBreakEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing break entries: %w", policy.ErrStore, err)
	}
	return out, commit(ctx, tx)
}

func scanBreakEntry(row rowScanner) (*breaks.Entry, error) {
	var (
		e                                breaks.Entry
		idStr, orgStr, userStr, entryStr string
	)
	err := row.Scan(&idStr, &orgStr, &userStr, &entryStr,
		&e.BreakStart, &e.BreakEnd, &e.DurationMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scanning break entry: %w", policy.ErrStore, err)
	}

	if e.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, idStr, err)
	}
	if e.OrganizationID, err = uuid.Parse(orgStr); err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, orgStr, err)
	}
	if e.UserID, err = uuid.Parse(userStr); err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, userStr, err)
	}
	if e.ClockEntryID, err = uuid.Parse(entryStr); err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, entryStr, err)
	}
	return &e, nil
}

// Compile-time interface verification.
var _ breaks.Store = (*BreakEntryStore)(nil)
