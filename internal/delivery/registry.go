// Package delivery fans turn lifecycle events out to realtime channels.
//
// Delivery is best-effort: a missing handler or a send failure is logged
// and ignored, and never affects turn processing.
package delivery

import (
	"log/slog"
	"sync"

	"github.com/user/wattwise/internal/types"
)

// Event types pushed over the realtime channel.
const (
	EventProcessingStarted  = "processing-started"
	EventProcessingFinished = "processing-finished"
)

// Event is one realtime notification for a session.
type Event struct {
	Type     string `json:"type"`
	Response string `json:"response,omitempty"`
}

// Handler delivers an event to one channel (websocket hub, logs, ...).
type Handler func(id types.SessionID, ev Event) error

// Registry holds named delivery handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger.With("component", "delivery"),
	}
}

func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	r.handlers[name] = h
	r.mu.Unlock()
}

// Publish sends the event through every registered handler. Failures are
// logged, never returned.
func (r *Registry) Publish(id types.SessionID, ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, h := range r.handlers {
		if err := h(id, ev); err != nil {
			r.logger.Warn("delivery failed", "handler", name, "event", ev.Type, "session", id, "err", err)
		}
	}
}
