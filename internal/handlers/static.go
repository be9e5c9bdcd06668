package handlers

import (
	"errors"
	"net/http"

	"tryon-chat-backend/internal/clients"
	"tryon-chat-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// StaticHandler serves previously persisted result images
type StaticHandler struct {
	images services.ImageStore
}

// NewStaticHandler creates a new static handler
func NewStaticHandler(images services.ImageStore) *StaticHandler {
	return &StaticHandler{images: images}
}

// GetResult handles GET /static/{filename}
func (h *StaticHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filename := chi.URLParam(r, "filename")
	if filename == "" {
		respondError(w, "filename is required", http.StatusBadRequest)
		return
	}

	data, err := h.images.Get(ctx, filename)
	if err != nil {
		if errors.Is(err, clients.ErrObjectNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Error().Err(err).Str("filename", filename).Msg("Failed to read result image")
		respondError(w, "failed to read result image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
