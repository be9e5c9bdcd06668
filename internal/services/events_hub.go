package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Job event types broadcast to dashboard clients
const (
	EventSessionStarted = "session_started"
	EventJobStarted     = "job_started"
	EventJobCompleted   = "job_completed"
	EventJobFailed      = "job_failed"
)

// JobEvent is one session lifecycle event
type JobEvent struct {
	Type      string `json:"type"`
	Identity  string `json:"identity"`
	SessionID string `json:"session_id"`
	ResultURL string `json:"result_url,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// dashboardConn wraps a connection with a write mutex. Broadcasts run on
// every webhook goroutine and the connection allows only one writer at a
// time.
type dashboardConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *dashboardConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// EventsHub fans session lifecycle events out to connected dashboard
// WebSocket clients. Broadcasting is best-effort; a client whose write fails
// is dropped.
type EventsHub struct {
	mu          sync.RWMutex
	connections map[string]*dashboardConn
}

// NewEventsHub creates a new events hub
func NewEventsHub() *EventsHub {
	return &EventsHub{
		connections: make(map[string]*dashboardConn),
	}
}

// Register registers a dashboard connection under a client ID
func (h *EventsHub) Register(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[clientID]; ok {
		existing.conn.Close()
	}
	h.connections[clientID] = &dashboardConn{conn: conn}

	log.Info().Str("client_id", clientID).Msg("Dashboard connection registered")
}

// Unregister removes a dashboard connection
func (h *EventsHub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.connections[clientID]; ok {
		conn.conn.Close()
		delete(h.connections, clientID)
		log.Info().Str("client_id", clientID).Msg("Dashboard connection unregistered")
	}
}

// Broadcast sends an event to every connected dashboard client
func (h *EventsHub) Broadcast(event JobEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal job event")
		return
	}

	h.mu.RLock()
	conns := make(map[string]*dashboardConn, len(h.connections))
	for id, conn := range h.connections {
		conns[id] = conn
	}
	h.mu.RUnlock()

	for id, conn := range conns {
		if err := conn.write(data); err != nil {
			log.Warn().Err(err).Str("client_id", id).Msg("Dropping dashboard connection")
			h.Unregister(id)
		}
	}
}

// ClientCount returns the number of connected dashboard clients
func (h *EventsHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
