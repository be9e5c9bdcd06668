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

// Outcome tells the caller what a state transition produced
type Outcome int

const (
	// OutcomeAwaitingGarment means a new session was created; ask the user
	// for the garment image next.
	OutcomeAwaitingGarment Outcome = iota
	// OutcomeJobStarted means the active session just received its garment
	// image; the caller must run the try-on job and record its result.
	OutcomeJobStarted
	// OutcomeNewSession means the previous flow was superseded and a fresh
	// session was created from this image.
	OutcomeNewSession
)

// Advance is the result of feeding one inbound image into the state machine
type Advance struct {
	Outcome Outcome
	Session *models.TryOnSession
}

// SessionStore persists try-on sessions
type SessionStore interface {
	Create(ctx context.Context, session *models.TryOnSession) error
	GetActiveByIdentity(ctx context.Context, identity string) (*models.TryOnSession, error)
	SetGarmentImage(ctx context.Context, id, garmentImage string) error
	Complete(ctx context.Context, id, resultImage string, at time.Time) error
	Abandon(ctx context.Context, id string, at time.Time) error
}

// SessionService is the per-identity conversation state machine. The state is
// derived from session rows: no active session, or an active session awaiting
// its garment image. Callers must serialize Advance calls per identity so two
// concurrent events cannot create two active sessions.
type SessionService struct {
	store SessionStore
	now   func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(store SessionStore) *SessionService {
	return &SessionService{
		store: store,
		now:   time.Now,
	}
}

// Advance feeds one inbound image into the identity's flow and returns what
// happened: a new session awaiting its garment, a started job, or a fresh
// session superseding a stalled one.
func (s *SessionService) Advance(ctx context.Context, identity, mediaRef string) (*Advance, error) {
	active, err := s.store.GetActiveByIdentity(ctx, identity)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up active session: %w", err)
	}

	if active == nil {
		session, err := s.startSession(ctx, identity, mediaRef)
		if err != nil {
			return nil, err
		}
		return &Advance{Outcome: OutcomeAwaitingGarment, Session: session}, nil
	}

	if active.GarmentImage == nil {
		if err := s.store.SetGarmentImage(ctx, active.ID, mediaRef); err != nil {
			return nil, fmt.Errorf("failed to record garment image: %w", err)
		}
		active.GarmentImage = &mediaRef
		return &Advance{Outcome: OutcomeJobStarted, Session: active}, nil
	}

	// The active session already has both images but never completed, which
	// happens when its job failed. Close it out and start over so only one
	// session stays active.
	if err := s.store.Abandon(ctx, active.ID, s.now()); err != nil {
		return nil, fmt.Errorf("failed to abandon stalled session: %w", err)
	}
	log.Info().
		Str("identity", identity).
		Str("session_id", active.ID).
		Msg("Abandoned stalled session")

	session, err := s.startSession(ctx, identity, mediaRef)
	if err != nil {
		return nil, err
	}
	return &Advance{Outcome: OutcomeNewSession, Session: session}, nil
}

// RecordResult closes a session with its result image
func (s *SessionService) RecordResult(ctx context.Context, session *models.TryOnSession, resultRef string) error {
	completedAt := s.now()
	if err := s.store.Complete(ctx, session.ID, resultRef, completedAt); err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	session.ResultImage = &resultRef
	session.CompletedAt = &completedAt
	return nil
}

func (s *SessionService) startSession(ctx context.Context, identity, personImage string) (*models.TryOnSession, error) {
	session := &models.TryOnSession{
		ID:          uuid.New().String(),
		Identity:    identity,
		PersonImage: personImage,
		CreatedAt:   s.now(),
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}
