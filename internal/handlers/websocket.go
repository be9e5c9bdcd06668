package handlers

import (
	"net/http"

	"tryon-chat-backend/internal/middleware"
	"tryon-chat-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades dashboard clients and registers them with the
// events hub so they receive the job event stream.
type WebSocketHandler struct {
	hub       *services.EventsHub
	jwtSecret string
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.EventsHub, jwtSecret string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

// HandleWebSocket handles GET /ws?token=...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if _, err := middleware.ValidateToken(token, h.jwtSecret); err != nil {
		respondError(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID := uuid.New().String()
	h.hub.Register(clientID, conn)

	// The stream is one-way; reads only detect the client going away.
	go func() {
		defer h.hub.Unregister(clientID)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
