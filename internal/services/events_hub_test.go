package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *EventsHub, clientID string) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(clientID, conn)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	// Registration happens on the server goroutine; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, hub.ClientCount())

	return client
}

func TestEventsHub_BroadcastDeliversEvent(t *testing.T) {
	hub := NewEventsHub()
	client := dialHub(t, hub, "dash")

	hub.Broadcast(JobEvent{
		Type:      EventJobCompleted,
		Identity:  "id",
		SessionID: "s1",
		ResultURL: "https://host/static/r.png",
	})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var event JobEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, EventJobCompleted, event.Type)
	assert.Equal(t, "s1", event.SessionID)
	assert.Equal(t, "https://host/static/r.png", event.ResultURL)
	assert.NotZero(t, event.Timestamp)
}

func TestEventsHub_ConcurrentBroadcasts(t *testing.T) {
	hub := NewEventsHub()
	client := dialHub(t, hub, "dash")

	// Broadcasts come in from every webhook goroutine; writes to the one
	// connection must be serialized.
	const broadcasts = 32
	var wg sync.WaitGroup
	for i := 0; i < broadcasts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Broadcast(JobEvent{Type: EventJobStarted, Identity: "id", SessionID: "s"})
		}()
	}
	wg.Wait()

	for i := 0; i < broadcasts; i++ {
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := client.ReadMessage()
		require.NoError(t, err, "message %d", i+1)

		var event JobEvent
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, EventJobStarted, event.Type)
	}

	assert.Equal(t, 1, hub.ClientCount())
}

func TestEventsHub_UnregisterDropsClient(t *testing.T) {
	hub := NewEventsHub()
	dialHub(t, hub, "dash")

	hub.Unregister("dash")
	assert.Equal(t, 0, hub.ClientCount())

	// Broadcasting with no clients is a no-op.
	hub.Broadcast(JobEvent{Type: EventJobFailed, Identity: "id", SessionID: "s"})
}
