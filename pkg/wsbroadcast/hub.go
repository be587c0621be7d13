// Package wsbroadcast fans out event-bus updates to WebSocket clients,
// replaying a short backlog to every new connection so a client that
// just opened the map doesn't wait for the next change to see state.
package wsbroadcast

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshforge/meshforge-maps/pkg/events"
	"github.com/meshforge/meshforge-maps/pkg/logx"
)

// maxPortFallback is how many adjacent ports Start tries past the
// configured one before giving up.
const maxPortFallback = 5

// replayBufferSize bounds how many recent messages a newly connected
// client is replayed before streaming live updates.
const replayBufferSize = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// message is the wire shape sent to every client.
type message struct {
	Topic     events.Topic `json:"topic"`
	NodeID    string       `json:"node_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   interface{}  `json:"payload"`
}

// client is one connected WebSocket subscriber with its own buffered
// send channel, so one slow reader can't block the broadcaster or
// other clients.
type client struct {
	conn *websocket.Conn
	send chan message
}

// Hub bridges an events.Bus to any number of connected WebSocket
// clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	replay  []message
	log     *logx.Logger
	subID   uint64

	server *http.Server
	port   int
}

// NewHub creates a Hub subscribed to bus's wildcard topic. log may be
// nil.
func NewHub(bus *events.Bus, log *logx.Logger) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		log:     log,
	}
	if bus != nil {
		h.subID = bus.Subscribe(events.Wildcard, h.onEvent)
	}
	return h
}

func (h *Hub) onEvent(ev events.Event) {
	msg := message{Topic: ev.Topic, NodeID: ev.NodeID, Timestamp: ev.Timestamp, Payload: ev.Payload}

	h.mu.Lock()
	h.replay = append(h.replay, msg)
	if len(h.replay) > replayBufferSize {
		h.replay = h.replay[len(h.replay)-replayBufferSize:]
	}
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			if h.log != nil {
				h.log.Warn("wsbroadcast dropping message for slow client")
			}
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket connection, replays
// the recent backlog, then streams live updates until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.log != nil {
			h.log.Warn("websocket upgrade failed", "error", err.Error())
		}
		return
	}

	c := &client{conn: conn, send: make(chan message, replayBufferSize)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	backlog := append([]message(nil), h.replay...)
	h.mu.Unlock()

	go h.writePump(c, backlog)
	h.readPump(c)
}

// writePump owns the connection's writer side: it drains the replay
// backlog first, then the live send channel, until closed.
func (h *Hub) writePump(c *client, backlog []message) {
	defer c.conn.Close()
	for _, msg := range backlog {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readPump discards inbound traffic (clients don't send commands over
// this connection) purely to detect disconnects and drive cleanup.
func (h *Hub) readPump(c *client) {
	defer h.removeClient(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Start binds the hub's own listener on host:port, trying up to
// maxPortFallback adjacent ports when the configured one is taken, and
// serves WebSocket upgrades in the background. The port actually bound
// is returned. The hub runs independently of the HTTP API server so a
// stalled API can't back up event delivery.
func (h *Hub) Start(host string, port int) (int, error) {
	var lastErr error
	for offset := 0; offset <= maxPortFallback; offset++ {
		addr := fmt.Sprintf("%s:%d", host, port+offset)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		h.mu.Lock()
		h.port = port + offset
		h.server = &http.Server{Handler: h}
		server := h.server
		h.mu.Unlock()

		go func() {
			if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
				if h.log != nil {
					h.log.Error("websocket server error", "error", err.Error())
				}
			}
		}()
		if h.log != nil {
			h.log.Info("websocket broadcaster listening", "addr", addr)
		}
		return h.port, nil
	}
	return 0, fmt.Errorf("bind websocket broadcaster after %d attempts starting at port %d: %w", maxPortFallback+1, port, lastErr)
}

// Port returns the port bound by Start (zero before Start succeeds).
func (h *Hub) Port() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.port
}

// Shutdown closes the listener (no new clients) and waits up to five
// seconds for the server to finish. WebSocket connections already
// upgraded are hijacked from the server, so Shutdown neither closes nor
// waits for them.
func (h *Hub) Shutdown() error {
	h.mu.RLock()
	server := h.server
	h.mu.RUnlock()
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the event bus.
func (h *Hub) Close(bus *events.Bus) {
	if bus != nil {
		bus.Unsubscribe(h.subID)
	}
}
