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

// SessionRepository handles database operations for try-on sessions
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.TryOnSession) error {
	query := `
		INSERT INTO sessions (id, identity, person_image, garment_image, result_image, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		session.ID, session.Identity, session.PersonImage,
		session.GarmentImage, session.ResultImage,
		session.CreatedAt, session.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetActiveByIdentity retrieves the identity's session with no completion
// timestamp. Returns ErrNotFound when the identity has no active session.
func (r *SessionRepository) GetActiveByIdentity(ctx context.Context, identity string) (*models.TryOnSession, error) {
	query := `
		SELECT id, identity, person_image, garment_image, result_image, created_at, completed_at
		FROM sessions
		WHERE identity = $1 AND completed_at IS NULL
		ORDER BY created_at
		LIMIT 1
	`
	var session models.TryOnSession
	err := r.db.QueryRow(ctx, query, identity).Scan(
		&session.ID, &session.Identity, &session.PersonImage,
		&session.GarmentImage, &session.ResultImage,
		&session.CreatedAt, &session.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return &session, nil
}

// SetGarmentImage records the second image on an active session
func (r *SessionRepository) SetGarmentImage(ctx context.Context, id, garmentImage string) error {
	query := `UPDATE sessions SET garment_image = $1 WHERE id = $2 AND completed_at IS NULL`
	tag, err := r.db.Exec(ctx, query, garmentImage, id)
	if err != nil {
		return fmt.Errorf("failed to set garment image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Complete records the result image and closes the session
func (r *SessionRepository) Complete(ctx context.Context, id, resultImage string, at time.Time) error {
	query := `UPDATE sessions SET result_image = $1, completed_at = $2 WHERE id = $3 AND completed_at IS NULL`
	tag, err := r.db.Exec(ctx, query, resultImage, at, id)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Abandon closes a session without a result. Used when a fresh flow starts
// over a session whose job failed, so only one session stays active.
func (r *SessionRepository) Abandon(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE sessions SET completed_at = $1 WHERE id = $2 AND completed_at IS NULL`
	tag, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to abandon session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
