// Package postgres provides shared persistence on PostgreSQL via pgx for
// multi-node deployments. Every operation runs in its own transaction and
// pins the organization with set_config before touching data; queries carry
// the organization_id predicate as well.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// Beginner is the slice of pgxpool.Pool the stores need. Tests may substitute
// a single connection.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Connect opens a pgx pool against dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening postgres pool: %w", policy.ErrStore, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pinging postgres: %w", policy.ErrStore, err)
	}
	return pool, nil
}

const ddl = `
CREATE TABLE IF NOT EXISTS clock_restrictions (
	id                       UUID PRIMARY KEY,
	organization_id          UUID NOT NULL,
	team_id                  UUID,
	user_id                  UUID,
	mode                     TEXT NOT NULL,
	clock_in_earliest        INTEGER,
	clock_in_latest          INTEGER,
	clock_out_earliest       INTEGER,
	clock_out_latest         INTEGER,
	condition                TEXT NOT NULL DEFAULT '',
	enforce_schedule         BOOLEAN NOT NULL DEFAULT FALSE,
	require_manager_approval BOOLEAN NOT NULL DEFAULT FALSE,
	max_daily_clock_events   INTEGER,
	is_active                BOOLEAN NOT NULL DEFAULT TRUE,
	created_at               TIMESTAMPTZ NOT NULL,
	updated_at               TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clock_restrictions_org
	ON clock_restrictions (organization_id, is_active);

CREATE TABLE IF NOT EXISTS break_policies (
	id                   UUID PRIMARY KEY,
	organization_id      UUID NOT NULL,
	team_id              UUID,
	user_id              UUID,
	name                 TEXT NOT NULL,
	tracking_mode        TEXT NOT NULL,
	notify_missing_break BOOLEAN NOT NULL DEFAULT FALSE,
	is_active            BOOLEAN NOT NULL DEFAULT TRUE,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_break_policies_org
	ON break_policies (organization_id, is_active);

CREATE TABLE IF NOT EXISTS break_windows (
	id                   UUID PRIMARY KEY,
	policy_id            UUID NOT NULL REFERENCES break_policies (id) ON DELETE CASCADE,
	day_of_week          INTEGER NOT NULL,
	window_start         INTEGER NOT NULL,
	window_end           INTEGER NOT NULL,
	min_duration_minutes INTEGER NOT NULL DEFAULT 0,
	max_duration_minutes INTEGER NOT NULL DEFAULT 0,
	is_mandatory         BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (policy_id, day_of_week)
);

CREATE TABLE IF NOT EXISTS override_requests (
	id               UUID PRIMARY KEY,
	organization_id  UUID NOT NULL,
	user_id          UUID NOT NULL,
	clock_entry_id   UUID,
	requested_action TEXT NOT NULL,
	requested_at     TIMESTAMPTZ NOT NULL,
	reason           TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	reviewed_by      UUID,
	reviewed_at      TIMESTAMPTZ,
	review_notes     TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_override_requests_user
	ON override_requests (organization_id, user_id, requested_action, status);

CREATE TABLE IF NOT EXISTS break_entries (
	id               UUID PRIMARY KEY,
	organization_id  UUID NOT NULL,
	user_id          UUID NOT NULL,
	clock_entry_id   UUID NOT NULL,
	break_start      TIMESTAMPTZ NOT NULL,
	break_end        TIMESTAMPTZ,
	duration_minutes INTEGER
);
CREATE INDEX IF NOT EXISTS idx_break_entries_user
	ON break_entries (organization_id, user_id);
`

// Migrate applies the schema. It is idempotent.
func Migrate(ctx context.Context, pool Beginner) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", policy.ErrStore, err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("%w: applying schema: %w", policy.ErrStore, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", policy.ErrStore, err)
	}
	return nil
}

// begin opens a transaction and pins the organization for row-level security
// policies that consult app.current_org.
func begin(ctx context.Context, pool Beginner, orgID uuid.UUID) (pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", policy.ErrStore, err)
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_org', $1, true);`, orgID.String()); err != nil {
		_ = tx.Rollback(context.Background())
		return nil, fmt.Errorf("%w: pinning organization: %w", policy.ErrStore, err)
	}
	return tx, nil
}

func commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", policy.ErrStore, err)
	}
	return nil
}
