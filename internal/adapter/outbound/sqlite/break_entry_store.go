package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/breaks"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

const breakEntryColumns = `id, organization_id, user_id, clock_entry_id,
	break_start, break_end, duration_minutes`

// BreakEntryStore implements breaks.Store on SQLite.
type BreakEntryStore struct {
	db *sql.DB
}

// NewBreakEntryStore creates a break entry store backed by db.
func NewBreakEntryStore(db *sql.DB) *BreakEntryStore {
	return &BreakEntryStore{db: db}
}

// Create inserts an entry. The open-break check and the insert share one
// transaction.
func (s *BreakEntryStore) Create(ctx context.Context, e *breaks.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", policy.ErrStore, err)
	}
	defer tx.Rollback()

	var n int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM break_entries
		 WHERE organization_id = ? AND user_id = ? AND break_end IS NULL`,
		e.OrganizationID.String(), e.UserID.String(),
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("%w: checking open break: %w", policy.ErrStore, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: user already has an open break", policy.ErrConflict)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO break_entries (`+breakEntryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.OrganizationID.String(), e.UserID.String(),
		e.ClockEntryID.String(), timeText(e.BreakStart),
		timePtrText(e.BreakEnd), intPtr(e.DurationMinutes),
	)
	if err != nil {
		return fmt.Errorf("%w: inserting break entry: %w", policy.ErrStore, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", policy.ErrStore, err)
	}
	return nil
}

// GetByID returns the entry, or ErrNotFound.
func (s *BreakEntryStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*breaks.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+breakEntryColumns+` FROM break_entries
		 WHERE id = ? AND organization_id = ?`,
		id.String(), orgID.String())
	e, err := scanBreakEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: break entry %s", policy.ErrNotFound, id)
	}
	return e, err
}

// FindOpen returns the user's open entry, or nil.
func (s *BreakEntryStore) FindOpen(ctx context.Context, orgID, userID uuid.UUID) (*breaks.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+breakEntryColumns+` FROM break_entries
		 WHERE organization_id = ? AND user_id = ? AND break_end IS NULL
		 LIMIT 1`,
		orgID.String(), userID.String())
	e, err := scanBreakEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// Update replaces the stored entry.
func (s *BreakEntryStore) Update(ctx context.Context, e *breaks.Entry) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE break_entries SET break_end = ?, duration_minutes = ?
		 WHERE id = ? AND organization_id = ?`,
		timePtrText(e.BreakEnd), intPtr(e.DurationMinutes),
		e.ID.String(), e.OrganizationID.String(),
	)
	if err != nil {
		return fmt.Errorf("%w: updating break entry: %w", policy.ErrStore, err)
	}
	return requireRowHit(res, e.ID)
}

// ListForClockEntry returns the entries linked to the clock entry, oldest
// first.
func (s *BreakEntryStore) ListForClockEntry(ctx context.Context, orgID, clockEntryID uuid.UUID) ([]breaks.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+breakEntryColumns+` FROM break_entries
		 WHERE organization_id = ? AND clock_entry_id = ?
		 ORDER BY break_start`,
		orgID.String(), clockEntryID.String())
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
	return out, nil
}

func scanBreakEntry(row rowScanner) (*breaks.Entry, error) {
	var (
		e                      breaks.Entry
		idStr, orgStr, userStr string
		entryStr, startStr     string
		endStr                 sql.NullString
		minutes                sql.NullInt64
	)
	err := row.Scan(&idStr, &orgStr, &userStr, &entryStr, &startStr, &endStr, &minutes)
	if errors.Is(err, sql.ErrNoRows) {
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
	if e.BreakStart, err = scanTime(startStr); err != nil {
		return nil, err
	}
	if e.BreakEnd, err = scanTimePtr(endStr); err != nil {
		return nil, err
	}
	e.DurationMinutes = scanIntPtr(minutes)
	return &e, nil
}

// Compile-time interface verification.
var _ breaks.Store = (*BreakEntryStore)(nil)
