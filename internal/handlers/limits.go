package handlers

import (
	"errors"
	"net/http"

	"tryon-chat-backend/internal/models"
	"tryon-chat-backend/internal/repository"
	"tryon-chat-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// LimitsHandler serves the read-only quota view
type LimitsHandler struct {
	limiter *services.RateLimiter
	users   *services.UserService
}

// NewLimitsHandler creates a new limits handler
func NewLimitsHandler(limiter *services.RateLimiter, users *services.UserService) *LimitsHandler {
	return &LimitsHandler{
		limiter: limiter,
		users:   users,
	}
}

// GetLimits handles GET /user/{identity}/limits. It derives the view from
// the quota entry and the user record without mutating either.
func (h *LimitsHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := chi.URLParam(r, "identity")
	if identity == "" {
		respondError(w, "identity is required", http.StatusBadRequest)
		return
	}

	used, remaining, resetIn, err := h.limiter.Status(ctx, identity)
	if err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("Failed to read limit status")
		respondError(w, "failed to read limit status", http.StatusInternalServerError)
		return
	}

	status := models.LimitStatus{
		Identity:       identity,
		Used:           used,
		Remaining:      remaining,
		ResetInSeconds: resetIn,
	}

	user, err := h.users.Get(ctx, identity)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Error().Err(err).Str("identity", identity).Msg("Failed to read user")
		respondError(w, "failed to read limit status", http.StatusInternalServerError)
		return
	}
	if user != nil {
		status.LifetimeTotal = user.RequestCount
		status.LastRequest = user.LastRequest
	}

	respondJSON(w, status, http.StatusOK)
}
