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

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, identity, created_at, last_request, request_count)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, user.ID, user.Identity, user.CreatedAt, user.LastRequest, user.RequestCount)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByIdentity retrieves a user by identity
func (r *UserRepository) GetByIdentity(ctx context.Context, identity string) (*models.User, error) {
	query := `
		SELECT id, identity, created_at, last_request, request_count
		FROM users
		WHERE identity = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, identity).Scan(
		&user.ID, &user.Identity, &user.CreatedAt, &user.LastRequest, &user.RequestCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// RecordActivity bumps the lifetime request counter and last-request
// timestamp for an identity.
func (r *UserRepository) RecordActivity(ctx context.Context, identity string, at time.Time) error {
	query := `
		UPDATE users
		SET last_request = $1, request_count = request_count + 1
		WHERE identity = $2
	`
	tag, err := r.db.Exec(ctx, query, at, identity)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
