package realtime

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/wattwise/internal/delivery"
	"github.com/user/wattwise/internal/types"
)

func dial(t *testing.T, url string, sid types.SessionID) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(url, "http", "ws", 1) + "/ws?sessionId=" + string(sid)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPushReachesSubscriber(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(srvHandler(hub))
	defer srv.Close()

	sid := types.NewSessionID()
	conn := dial(t, srv.URL, sid)

	// Give the hub a moment to register the subscription.
	waitForSubscriber(t, hub, sid)

	hub.Push(sid, delivery.Event{Type: delivery.EventProcessingFinished, Response: "done"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var ev delivery.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != delivery.EventProcessingFinished || ev.Response != "done" {
		t.Errorf("event: %+v", ev)
	}
}

func TestPushIsolatedPerSession(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(srvHandler(hub))
	defer srv.Close()

	a := types.NewSessionID()
	b := types.NewSessionID()
	connA := dial(t, srv.URL, a)
	dial(t, srv.URL, b)
	waitForSubscriber(t, hub, a)
	waitForSubscriber(t, hub, b)

	hub.Push(b, delivery.Event{Type: delivery.EventProcessingStarted})

	connA.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var ev delivery.Event
	if err := connA.ReadJSON(&ev); err == nil {
		t.Errorf("session A received session B's event: %+v", ev)
	}
}

func TestPushNoSubscribers(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))
	if err := hub.Push(types.NewSessionID(), delivery.Event{Type: delivery.EventProcessingStarted}); err != nil {
		t.Errorf("push without subscribers should be a no-op, got %v", err)
	}
}

func TestPushAllWritesFailedReturnsError(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(srvHandler(hub))
	defer srv.Close()

	sid := types.NewSessionID()
	dial(t, srv.URL, sid)
	waitForSubscriber(t, hub, sid)

	// Kill the hub-side connection so the write must fail.
	hub.mu.Lock()
	for conn := range hub.conns[sid] {
		conn.Close()
	}
	hub.mu.Unlock()

	err := hub.Push(sid, delivery.Event{Type: delivery.EventProcessingFinished, Response: "done"})
	if err == nil {
		t.Fatal("expected error when no subscriber write succeeded")
	}

	// The dead connection was dropped; the next push is a clean no-op.
	if err := hub.Push(sid, delivery.Event{Type: delivery.EventProcessingStarted}); err != nil {
		t.Errorf("push after drop: %v", err)
	}
}

func srvHandler(hub *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", hub.HandleWS)
	return mux
}

func waitForSubscriber(t *testing.T, hub *Hub, sid types.SessionID) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		n := len(hub.conns[sid])
		hub.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("subscriber never registered")
}
