package wsbroadcast

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshforge/meshforge-maps/pkg/events"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClientReceivesLiveBroadcast(t *testing.T) {
	bus := events.New()
	hub := NewHub(bus, nil)
	defer hub.Close(bus)

	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server)
	time.Sleep(20 * time.Millisecond) // let the server register the client

	bus.Publish(events.Event{Topic: events.TopicNodeOnline, NodeID: "node-1", Timestamp: time.Now(), Payload: "online"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got message
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.NodeID != "node-1" || got.Topic != events.TopicNodeOnline {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestNewClientReceivesReplayBacklog(t *testing.T) {
	bus := events.New()
	hub := NewHub(bus, nil)
	defer hub.Close(bus)

	bus.Publish(events.Event{Topic: events.TopicDrift, NodeID: "node-1", Timestamp: time.Now(), Payload: "drift-1"})
	bus.Publish(events.Event{Topic: events.TopicDrift, NodeID: "node-2", Timestamp: time.Now(), Payload: "drift-2"})
	time.Sleep(10 * time.Millisecond)

	server := httptest.NewServer(hub)
	defer server.Close()
	conn := dial(t, server)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first message
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON first replayed message: %v", err)
	}
	if first.NodeID != "node-1" {
		t.Fatalf("expected replay to start with node-1, got %+v", first)
	}
}

func TestClientCountTracksConnections(t *testing.T) {
	bus := events.New()
	hub := NewHub(bus, nil)
	defer hub.Close(bus)

	server := httptest.NewServer(hub)
	defer server.Close()

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients before connecting, got %d", hub.ClientCount())
	}
	dial(t, server)
	time.Sleep(20 * time.Millisecond)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client after connecting, got %d", hub.ClientCount())
	}
}
