// Package breaks contains domain types for explicitly tracked break entries.
package breaks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is a single tracked break belonging to a clock entry. BreakEnd and
// DurationMinutes stay nil while the break is open. At most one entry per
// user may be open at any time.
type Entry struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	ClockEntryID   uuid.UUID

	BreakStart      time.Time
	BreakEnd        *time.Time
	DurationMinutes *int
}

// Open reports whether the break has not been ended yet.
func (e *Entry) Open() bool {
	return e.BreakEnd == nil
}

// Store persists break entries. Every query is organization scoped.
type Store interface {
	// Create inserts an entry. The check for an existing open entry for the
	// user and the insert happen as one atomic test-and-set; a second open
	// break surfaces as ErrConflict.
	Create(ctx context.Context, e *Entry) error

	// GetByID returns the entry, or ErrNotFound.
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Entry, error)

	// FindOpen returns the user's open entry, or nil.
	FindOpen(ctx context.Context, orgID, userID uuid.UUID) (*Entry, error)

	// Update replaces the stored entry (used to close a break).
	Update(ctx context.Context, e *Entry) error

	// ListForClockEntry returns all entries linked to the clock entry, oldest
	// first.
	ListForClockEntry(ctx context.Context, orgID, clockEntryID uuid.UUID) ([]Entry, error)
}
