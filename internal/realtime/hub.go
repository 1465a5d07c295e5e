// Package realtime pushes turn lifecycle events to websocket clients.
package realtime

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/user/wattwise/internal/delivery"
	"github.com/user/wattwise/internal/types"
)

// Hub tracks websocket connections per session and pushes events to them.
// Delivery is best-effort; a failed write closes and drops the connection.
type Hub struct {
	mu       sync.Mutex
	conns    map[types.SessionID]map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		conns: make(map[types.SessionID]map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the app origin; same-host
			// deployments keep this permissive.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "realtime"),
	}
}

// HandleWS upgrades the request and subscribes the connection to the
// session given by the sessionId query parameter.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sid := types.SessionID(r.URL.Query().Get("sessionId"))
	if sid == "" {
		http.Error(w, "sessionId required", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	h.add(sid, conn)
	h.logger.Debug("client subscribed", "session", sid)

	// Reader loop only detects closure; clients do not send data.
	go func() {
		defer h.remove(sid, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) add(sid types.SessionID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[sid]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		h.conns[sid] = set
	}
	set[conn] = struct{}{}
}

func (h *Hub) remove(sid types.SessionID, conn *websocket.Conn) {
	h.mu.Lock()
	if set, ok := h.conns[sid]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, sid)
		}
	}
	h.mu.Unlock()
	conn.Close()
}

// Push sends the event to every subscriber of the session. Returns an
// error only when the session had subscribers and no write succeeded, so
// the delivery registry can log it. No subscribers is a successful no-op.
func (h *Hub) Push(sid types.SessionID, ev delivery.Event) error {
	h.mu.Lock()
	var targets []*websocket.Conn
	for conn := range h.conns[sid] {
		targets = append(targets, conn)
	}
	h.mu.Unlock()

	failed := 0
	for _, conn := range targets {
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug("dropping slow client", "session", sid, "err", err)
			h.remove(sid, conn)
			failed++
		}
	}
	if len(targets) > 0 && failed == len(targets) {
		return fmt.Errorf("event %s reached none of %d subscribers", ev.Type, len(targets))
	}
	return nil
}

// Handler adapts the hub to the delivery registry.
func (h *Hub) Handler() delivery.Handler {
	return func(sid types.SessionID, ev delivery.Event) error {
		return h.Push(sid, ev)
	}
}
