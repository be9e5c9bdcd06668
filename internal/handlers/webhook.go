package handlers

import (
	"context"
	"errors"
	"net/http"

	"tryon-chat-backend/internal/repository"
	"tryon-chat-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// Reply texts sent back over the messaging channel
const (
	msgNoIdentity     = "Unable to identify phone number."
	msgNoMedia        = "We didn't receive an image. Please try sending your image again."
	msgRateLimited    = "You've reached your daily limit of 100 requests. Please try again tomorrow."
	msgTransientError = "Something went wrong on our side. Please try again in a moment."
	msgAskGarment     = "Great! Now please send the image of the garment you want to try on."
	msgNewSession     = "Starting a new virtual try-on session. Please send the garment image."
	msgJobSuccess     = "Here is your virtual try-on result!"
	msgJobFailure     = "Sorry, something went wrong with the try-on process."
	msgResultCaption  = "Here is your virtual try-on result:"
)

// MessageSender delivers outbound media messages
type MessageSender interface {
	SendMedia(ctx context.Context, to, mediaURL, body string) error
}

// JobRunner runs one try-on job and returns the result URL
type JobRunner interface {
	Run(ctx context.Context, personRef, garmentRef string) (string, error)
}

// WebhookHandler is the entry point for inbound message events. Per event it
// runs the pipeline: rate limiter, user bookkeeping, media validation,
// session state machine, and (when a job starts) the dispatcher plus the
// outbound reply.
type WebhookHandler struct {
	limiter  *services.RateLimiter
	users    *services.UserService
	sessions *services.SessionService
	jobs     JobRunner
	sender   MessageSender
	locks    *services.IdentityLocks
	hub      *services.EventsHub
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(
	limiter *services.RateLimiter,
	users *services.UserService,
	sessions *services.SessionService,
	jobs JobRunner,
	sender MessageSender,
	locks *services.IdentityLocks,
	hub *services.EventsHub,
) *WebhookHandler {
	return &WebhookHandler{
		limiter:  limiter,
		users:    users,
		sessions: sessions,
		jobs:     jobs,
		sender:   sender,
		locks:    locks,
		hub:      hub,
	}
}

// Handle handles POST /webhook
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := r.FormValue("From")
	if identity == "" {
		respondMessage(w, msgNoIdentity, http.StatusBadRequest)
		return
	}

	// Everything up to and including the state transition runs under the
	// identity's lock. The dispatcher's network calls do not.
	advance, handled := h.advanceLocked(ctx, w, r, identity)
	if handled {
		return
	}

	switch advance.Outcome {
	case services.OutcomeAwaitingGarment:
		h.hub.Broadcast(services.JobEvent{
			Type:      services.EventSessionStarted,
			Identity:  identity,
			SessionID: advance.Session.ID,
		})
		respondMessage(w, msgAskGarment, http.StatusOK)

	case services.OutcomeNewSession:
		h.hub.Broadcast(services.JobEvent{
			Type:      services.EventSessionStarted,
			Identity:  identity,
			SessionID: advance.Session.ID,
		})
		respondMessage(w, msgNewSession, http.StatusOK)

	case services.OutcomeJobStarted:
		h.runJob(ctx, w, identity, advance)
	}
}

// advanceLocked runs the rate limit check, user bookkeeping, media
// validation and state transition under the per-identity lock. When it has
// already written a response it reports handled=true.
func (h *WebhookHandler) advanceLocked(ctx context.Context, w http.ResponseWriter, r *http.Request, identity string) (*services.Advance, bool) {
	unlock := h.locks.Lock(identity)
	defer unlock()

	verdict, err := h.limiter.CheckAndConsume(ctx, identity)
	if err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("Rate limit check failed")
		respondMessage(w, msgTransientError, http.StatusServiceUnavailable)
		return nil, true
	}
	if verdict == services.VerdictLimited {
		respondMessage(w, msgRateLimited, http.StatusTooManyRequests)
		return nil, true
	}

	if _, err := h.users.Touch(ctx, identity); err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("Failed to record user activity")
		respondMessage(w, msgTransientError, http.StatusServiceUnavailable)
		return nil, true
	}

	// Quota is consumed before the payload is inspected; a message with no
	// image still counts against the daily limit.
	mediaRef := r.FormValue("MediaUrl0")
	if mediaRef == "" {
		respondMessage(w, msgNoMedia, http.StatusBadRequest)
		return nil, true
	}

	advance, err := h.sessions.Advance(ctx, identity, mediaRef)
	if err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("Failed to advance session")
		respondMessage(w, msgTransientError, http.StatusServiceUnavailable)
		return nil, true
	}
	return advance, false
}

// runJob runs the dispatcher for a session that just received its garment
// image, records the result and replies.
func (h *WebhookHandler) runJob(ctx context.Context, w http.ResponseWriter, identity string, advance *services.Advance) {
	session := advance.Session

	h.hub.Broadcast(services.JobEvent{
		Type:      services.EventJobStarted,
		Identity:  identity,
		SessionID: session.ID,
	})

	resultURL, err := h.jobs.Run(ctx, session.PersonImage, *session.GarmentImage)
	if err != nil {
		// The garment image stays recorded and the session stays open; the
		// next inbound image starts a brand-new flow.
		log.Error().Err(err).
			Str("identity", identity).
			Str("session_id", session.ID).
			Msg("Try-on job failed")
		h.hub.Broadcast(services.JobEvent{
			Type:      services.EventJobFailed,
			Identity:  identity,
			SessionID: session.ID,
		})
		respondMessage(w, msgJobFailure, http.StatusOK)
		return
	}

	if err := h.sessions.RecordResult(ctx, session, resultURL); err != nil {
		// A duplicate image arriving mid-job can supersede this session: the
		// state machine abandons it and starts a fresh one, so the completion
		// update matches no open row. The job still produced a result; deliver
		// it rather than reporting a fault.
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().
				Str("identity", identity).
				Str("session_id", session.ID).
				Msg("Session superseded during job; delivering result anyway")
		} else {
			log.Error().Err(err).
				Str("identity", identity).
				Str("session_id", session.ID).
				Msg("Failed to record job result")
			respondMessage(w, msgTransientError, http.StatusServiceUnavailable)
			return
		}
	}

	if err := h.sender.SendMedia(ctx, identity, resultURL, msgResultCaption); err != nil {
		// Outbound delivery failures are logged, not retried.
		log.Error().Err(err).Str("identity", identity).Msg("Failed to send result message")
	}

	h.hub.Broadcast(services.JobEvent{
		Type:      services.EventJobCompleted,
		Identity:  identity,
		SessionID: session.ID,
		ResultURL: resultURL,
	})

	log.Info().
		Str("identity", identity).
		Str("session_id", session.ID).
		Str("result_url", resultURL).
		Msg("Try-on job completed")

	respondMessage(w, msgJobSuccess, http.StatusOK)
}
