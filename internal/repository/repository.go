package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Migrate creates the tables this service needs if they do not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			identity      TEXT UNIQUE NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			last_request  TIMESTAMPTZ,
			request_count BIGINT NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id            TEXT PRIMARY KEY,
			identity      TEXT NOT NULL REFERENCES users (identity),
			person_image  TEXT NOT NULL,
			garment_image TEXT,
			result_image  TEXT,
			created_at    TIMESTAMPTZ NOT NULL,
			completed_at  TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS sessions_identity_active_idx
			ON sessions (identity) WHERE completed_at IS NULL;

		CREATE TABLE IF NOT EXISTS quota_entries (
			identity   TEXT PRIMARY KEY,
			count      INTEGER NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
	`
	if _, err := db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
