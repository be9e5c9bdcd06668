package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tryon-chat-backend/internal/models"
	"tryon-chat-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UserStore persists users
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByIdentity(ctx context.Context, identity string) (*models.User, error)
	RecordActivity(ctx context.Context, identity string, at time.Time) error
}

// UserService handles user-related business logic
type UserService struct {
	store UserStore
	now   func() time.Time
}

// NewUserService creates a new user service
func NewUserService(store UserStore) *UserService {
	return &UserService{
		store: store,
		now:   time.Now,
	}
}

// Touch records an accepted inbound event for an identity, creating the user
// lazily on first contact and bumping the lifetime counter and last-request
// timestamp. Rate-limited events must not be touched.
func (s *UserService) Touch(ctx context.Context, identity string) (*models.User, error) {
	now := s.now()

	user, err := s.store.GetByIdentity(ctx, identity)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		user = &models.User{
			ID:        uuid.New().String(),
			Identity:  identity,
			CreatedAt: now,
		}
		if err := s.store.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		log.Info().Str("identity", identity).Str("user_id", user.ID).Msg("User created")
	}

	if err := s.store.RecordActivity(ctx, identity, now); err != nil {
		return nil, fmt.Errorf("failed to record user activity: %w", err)
	}
	user.LastRequest = &now
	user.RequestCount++

	return user, nil
}

// Get retrieves a user by identity. Returns repository.ErrNotFound for
// unknown identities.
func (s *UserService) Get(ctx context.Context, identity string) (*models.User, error) {
	return s.store.GetByIdentity(ctx, identity)
}
