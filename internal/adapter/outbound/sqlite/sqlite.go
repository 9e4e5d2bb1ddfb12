// Package sqlite provides embedded persistence for policies, override
// requests, and break entries on top of modernc.org/sqlite. It is the default
// backend for single-node deployments; the postgres adapter covers
// multi-node setups.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

const schema = `
CREATE TABLE IF NOT EXISTS clock_restrictions (
	id                       TEXT PRIMARY KEY,
	organization_id          TEXT NOT NULL,
	team_id                  TEXT,
	user_id                  TEXT,
	mode                     TEXT NOT NULL,
	clock_in_earliest        INTEGER,
	clock_in_latest          INTEGER,
	clock_out_earliest       INTEGER,
	clock_out_latest         INTEGER,
	condition                TEXT NOT NULL DEFAULT '',
	enforce_schedule         INTEGER NOT NULL DEFAULT 0,
	require_manager_approval INTEGER NOT NULL DEFAULT 0,
	max_daily_clock_events   INTEGER,
	is_active                INTEGER NOT NULL DEFAULT 1,
	created_at               TEXT NOT NULL,
	updated_at               TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clock_restrictions_org
	ON clock_restrictions (organization_id, is_active);

CREATE TABLE IF NOT EXISTS break_policies (
	id                   TEXT PRIMARY KEY,
	organization_id      TEXT NOT NULL,
	team_id              TEXT,
	user_id              TEXT,
	name                 TEXT NOT NULL,
	tracking_mode        TEXT NOT NULL,
	notify_missing_break INTEGER NOT NULL DEFAULT 0,
	is_active            INTEGER NOT NULL DEFAULT 1,
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_break_policies_org
	ON break_policies (organization_id, is_active);

CREATE TABLE IF NOT EXISTS break_windows (
	id                   TEXT PRIMARY KEY,
	policy_id            TEXT NOT NULL REFERENCES break_policies (id) ON DELETE CASCADE,
	day_of_week          INTEGER NOT NULL,
	window_start         INTEGER NOT NULL,
	window_end           INTEGER NOT NULL,
	min_duration_minutes INTEGER NOT NULL DEFAULT 0,
	max_duration_minutes INTEGER NOT NULL DEFAULT 0,
	is_mandatory         INTEGER NOT NULL DEFAULT 0,
	UNIQUE (policy_id, day_of_week)
);

CREATE TABLE IF NOT EXISTS override_requests (
	id               TEXT PRIMARY KEY,
	organization_id  TEXT NOT NULL,
	user_id          TEXT NOT NULL,
	clock_entry_id   TEXT,
	requested_action TEXT NOT NULL,
	requested_at     TEXT NOT NULL,
	reason           TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	reviewed_by      TEXT,
	reviewed_at      TEXT,
	review_notes     TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_override_requests_user
	ON override_requests (organization_id, user_id, requested_action, status);

CREATE TABLE IF NOT EXISTS break_entries (
	id               TEXT PRIMARY KEY,
	organization_id  TEXT NOT NULL,
	user_id          TEXT NOT NULL,
	clock_entry_id   TEXT NOT NULL,
	break_start      TEXT NOT NULL,
	break_end        TEXT,
	duration_minutes INTEGER
);
CREATE INDEX IF NOT EXISTS idx_break_entries_user
	ON break_entries (organization_id, user_id);
`

// Open opens (and creates if necessary) the database at path, applies the
// connection pragmas, and ensures the schema exists. Use ":memory:" for an
// ephemeral database in tests.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening sqlite %s: %w", policy.ErrStore, path, err)
	}

	// SQLite serializes writes regardless of pool size; a single connection
	// also keeps ":memory:" databases coherent across queries.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %w", policy.ErrStore, pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: applying schema: %w", policy.ErrStore, err)
	}
	return db, nil
}

// Column codec helpers. UUIDs are stored as their canonical text form, times
// as RFC3339Nano in UTC, and TimeOfDay values as integer seconds since
// midnight.

func uuidText(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func scanUUID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, fmt.Errorf("%w: stored uuid %q: %w", policy.ErrStore, s.String, err)
	}
	return &id, nil
}

func timeText(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func timePtrText(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeText(*t)
}

func scanTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: stored timestamp %q: %w", policy.ErrStore, s, err)
	}
	return t, nil
}

func scanTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := scanTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func todInt(t *policy.TimeOfDay) any {
	if t == nil {
		return nil
	}
	return int(*t)
}

func scanTod(v sql.NullInt64) *policy.TimeOfDay {
	if !v.Valid {
		return nil
	}
	t := policy.TimeOfDay(v.Int64)
	return &t
}

func intPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func scanIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
