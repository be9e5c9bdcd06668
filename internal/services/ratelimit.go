package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tryon-chat-backend/internal/models"
	"tryon-chat-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// Verdict is the outcome of a rate limit check
type Verdict int

const (
	// VerdictAllowed means the request may proceed; a quota slot was consumed
	VerdictAllowed Verdict = iota
	// VerdictLimited means the identity is over its daily quota
	VerdictLimited
)

// QuotaStore holds one counter and window expiry per identity
type QuotaStore interface {
	// Get returns the entry for an identity, or repository.ErrNotFound.
	Get(ctx context.Context, identity string) (*models.QuotaEntry, error)
	// Reset starts a fresh window with count=1.
	Reset(ctx context.Context, identity string, expiresAt time.Time) error
	// Increment bumps the counter and returns the new count.
	Increment(ctx context.Context, identity string) (int, error)
}

// RateLimiter enforces the fixed-window daily quota. Check-and-consume for a
// single identity must be serialized by the caller (the webhook handler holds
// a per-identity lock); the store operations themselves are atomic, so
// concurrent callers can never push the counter past the limit.
type RateLimiter struct {
	store       QuotaStore
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// NewRateLimiter creates a rate limiter over a quota store
func NewRateLimiter(store QuotaStore, maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		store:       store,
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// CheckAndConsume consumes one quota slot for the identity if any remain in
// the current window. A Limited verdict consumes nothing and does not extend
// the window. Store failures are returned as errors, never as a verdict.
func (l *RateLimiter) CheckAndConsume(ctx context.Context, identity string) (Verdict, error) {
	now := l.now()

	entry, err := l.store.Get(ctx, identity)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if entry == nil || entry.Expired(now) {
		if err := l.store.Reset(ctx, identity, now.Add(l.window)); err != nil {
			return 0, fmt.Errorf("failed to start quota window: %w", err)
		}
		return VerdictAllowed, nil
	}

	if entry.Count >= l.maxRequests {
		log.Debug().Str("identity", identity).Int("count", entry.Count).Msg("Rate limit reached")
		return VerdictLimited, nil
	}

	if _, err := l.store.Increment(ctx, identity); err != nil {
		// The entry can vanish between Get and Increment if its window was
		// reaped; start a fresh window in that case.
		if errors.Is(err, repository.ErrNotFound) {
			if resetErr := l.store.Reset(ctx, identity, now.Add(l.window)); resetErr != nil {
				return 0, fmt.Errorf("failed to start quota window: %w", resetErr)
			}
			return VerdictAllowed, nil
		}
		return 0, fmt.Errorf("failed to consume quota: %w", err)
	}
	return VerdictAllowed, nil
}

// Status returns the read-only quota view for an identity without mutating
// the entry. An identity with no entry (or an expired one) has full quota.
func (l *RateLimiter) Status(ctx context.Context, identity string) (used int, remaining int, resetInSeconds int64, err error) {
	now := l.now()

	entry, err := l.store.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, l.maxRequests, int64(l.window.Seconds()), nil
		}
		return 0, 0, 0, fmt.Errorf("failed to read quota entry: %w", err)
	}

	if entry.Expired(now) {
		return 0, l.maxRequests, int64(l.window.Seconds()), nil
	}

	used = entry.Count
	remaining = l.maxRequests - used
	if remaining < 0 {
		remaining = 0
	}
	return used, remaining, int64(entry.ExpiresAt.Sub(now).Seconds()), nil
}

// MaxRequests returns the configured daily limit
func (l *RateLimiter) MaxRequests() int {
	return l.maxRequests
}
