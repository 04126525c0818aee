package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybridge-labs/skybridge/internal/logging"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(logging.NewNop(), nil)
	t.Cleanup(hub.Close)

	engine := gin.New()
	engine.GET("/events", hub.HandleConnection)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
}

func connect(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestHubBroadcast(t *testing.T) {
	t.Run("auth status reaches a subscriber", func(t *testing.T) {
		hub, url := newTestHub(t)
		conn := connect(t, url)

		// The upgrade completes before HandleConnection registers the
		// client; give registration a beat.
		time.Sleep(50 * time.Millisecond)
		hub.AuthStatusChanged(true, "alice.bsky.social")

		event := readEvent(t, conn)
		assert.Equal(t, "auth_status", event.Type)
		assert.True(t, event.Authenticated)
		assert.Equal(t, "alice.bsky.social", event.Handle)
	})

	t.Run("signed out event omits handle", func(t *testing.T) {
		hub, url := newTestHub(t)
		conn := connect(t, url)
		time.Sleep(50 * time.Millisecond)

		hub.AuthStatusChanged(false, "")

		event := readEvent(t, conn)
		assert.False(t, event.Authenticated)
		assert.Empty(t, event.Handle)
	})

	t.Run("all subscribers receive the broadcast", func(t *testing.T) {
		hub, url := newTestHub(t)
		first := connect(t, url)
		second := connect(t, url)
		time.Sleep(50 * time.Millisecond)

		hub.AuthStatusChanged(true, "alice.bsky.social")

		assert.True(t, readEvent(t, first).Authenticated)
		assert.True(t, readEvent(t, second).Authenticated)
	})

	t.Run("broadcast with no subscribers is a no-op", func(t *testing.T) {
		hub, _ := newTestHub(t)
		hub.AuthStatusChanged(true, "alice.bsky.social")
	})

	t.Run("disconnected subscriber is dropped", func(t *testing.T) {
		hub, url := newTestHub(t)
		conn := connect(t, url)
		time.Sleep(50 * time.Millisecond)
		conn.Close()
		time.Sleep(50 * time.Millisecond)

		hub.AuthStatusChanged(true, "alice.bsky.social")

		hub.mu.Lock()
		remaining := len(hub.clients)
		hub.mu.Unlock()
		assert.Zero(t, remaining)
	})
}
