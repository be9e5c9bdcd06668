package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tryon-chat-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuotaRepository holds the per-identity request counters behind the rate
// limiter. Counters expire by comparing expires_at against the caller's
// clock rather than by a background sweep.
type QuotaRepository struct {
	db *pgxpool.Pool
}

// NewQuotaRepository creates a new quota repository
func NewQuotaRepository(db *pgxpool.Pool) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// Get retrieves the quota entry for an identity. Returns ErrNotFound when no
// entry exists.
func (r *QuotaRepository) Get(ctx context.Context, identity string) (*models.QuotaEntry, error) {
	query := `SELECT identity, count, expires_at FROM quota_entries WHERE identity = $1`
	var entry models.QuotaEntry
	err := r.db.QueryRow(ctx, query, identity).Scan(&entry.Identity, &entry.Count, &entry.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quota entry: %w", err)
	}
	return &entry, nil
}

// Reset starts a fresh window for an identity with count=1. The upsert makes
// concurrent resets converge on a single window boundary.
func (r *QuotaRepository) Reset(ctx context.Context, identity string, expiresAt time.Time) error {
	query := `
		INSERT INTO quota_entries (identity, count, expires_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (identity) DO UPDATE SET count = 1, expires_at = EXCLUDED.expires_at
	`
	if _, err := r.db.Exec(ctx, query, identity, expiresAt); err != nil {
		return fmt.Errorf("failed to reset quota entry: %w", err)
	}
	return nil
}

// Increment atomically bumps the counter and returns the new count
func (r *QuotaRepository) Increment(ctx context.Context, identity string) (int, error) {
	query := `UPDATE quota_entries SET count = count + 1 WHERE identity = $1 RETURNING count`
	var count int
	err := r.db.QueryRow(ctx, query, identity).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment quota entry: %w", err)
	}
	return count, nil
}
