package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/skybridge-labs/skybridge/internal/logging"
	"github.com/skybridge-labs/skybridge/internal/monitoring"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

// Event is a broadcast notification pushed to every connected client.
type Event struct {
	Type          string `json:"type"`
	Authenticated bool   `json:"authenticated"`
	Handle        string `json:"handle,omitempty"`
}

// Hub fan-outs events to websocket subscribers. It implements
// auth.Notifier so session state changes reach the UI without polling.
type Hub struct {
	log      *logging.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// NewHub creates an event hub. metrics may be nil.
func NewHub(log *logging.Logger, metrics *monitoring.Metrics) *Hub {
	return &Hub{
		log:     log,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The daemon binds loopback; browser extensions connect with
			// arbitrary Origin headers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// AuthStatusChanged broadcasts a session state transition.
func (h *Hub) AuthStatusChanged(authenticated bool, handle string) {
	h.broadcast(Event{Type: "auth_status", Authenticated: authenticated, Handle: handle})
}

func (h *Hub) broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			// Slow consumer; drop it rather than block the broadcaster.
			h.dropLocked(c)
		}
	}
}

// HandleConnection upgrades a request to a websocket subscription.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan Event, sendBufferSize)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.WSConnected(1)
	h.log.Info("event subscriber connected", zap.Int("subscribers", count))

	go h.writeLoop(cl)
	go h.readLoop(cl)
}

// writeLoop serializes outbound events for one client.
func (h *Hub) writeLoop(cl *client) {
	for event := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteJSON(event); err != nil {
			h.remove(cl)
			return
		}
	}
	cl.conn.Close()
}

// readLoop drains inbound frames so pings and closes are processed.
// Clients do not send application messages.
func (h *Hub) readLoop(cl *client) {
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			h.remove(cl)
			return
		}
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	removed := h.dropLocked(cl)
	h.mu.Unlock()
	if removed {
		h.log.Info("event subscriber disconnected")
	}
}

func (h *Hub) dropLocked(cl *client) bool {
	if _, ok := h.clients[cl]; !ok {
		return false
	}
	delete(h.clients, cl)
	close(cl.send)
	h.metrics.WSConnected(-1)
	return true
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.dropLocked(c)
	}
}
