// Package session holds conversation state for the session host.
//
// Sessions live in memory behind a Manager instance. Each session carries
// its own RWMutex so appends in one session never block readers of another.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/wattwise/internal/types"
)

// ErrSessionNotFound is returned for operations on unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

type session struct {
	mu         sync.RWMutex
	id         types.SessionID
	messages   []types.Message
	createdAt  time.Time
	lastActive time.Time
}

// Manager owns all live sessions. Safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[types.SessionID]*session
	now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[types.SessionID]*session),
		now:      time.Now,
	}
}

// Create allocates a new empty session and returns its ID.
func (m *Manager) Create() types.SessionID {
	id := types.NewSessionID()
	now := m.now()
	m.mu.Lock()
	m.sessions[id] = &session{id: id, createdAt: now, lastActive: now}
	m.mu.Unlock()
	return id
}

// Exists reports whether the session is known.
func (m *Manager) Exists(id types.SessionID) bool {
	m.mu.RLock()
	_, ok := m.sessions[id]
	m.mu.RUnlock()
	return ok
}

func (m *Manager) get(id types.SessionID) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Append adds messages to the end of the session history in order.
// The whole batch lands under one lock, so readers never observe a
// partially committed turn.
func (m *Manager) Append(id types.SessionID, msgs ...types.Message) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.messages = append(s.messages, msgs...)
	s.lastActive = m.now()
	s.mu.Unlock()
	return nil
}

// History returns a snapshot copy of the session's messages. The caller
// owns the slice; later appends do not show through.
func (m *Manager) History(id types.SessionID) ([]types.Message, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	s.mu.RUnlock()
	return out, nil
}

// Reset atomically clears the session's history while keeping its ID valid.
func (m *Manager) Reset(id types.SessionID) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.messages = nil
	s.lastActive = m.now()
	s.mu.Unlock()
	return nil
}

// Touch records activity on a session without changing its history.
func (m *Manager) Touch(id types.SessionID) {
	s, err := m.get(id)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.lastActive = m.now()
	s.mu.Unlock()
}

// Export is the serializable form of a session's full history.
type Export struct {
	SessionID    types.SessionID `json:"session_id"`
	Conversation []types.Message `json:"conversation"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Export serializes the session's history to JSON.
func (m *Manager) Export(id types.SessionID) ([]byte, error) {
	history, err := m.History(id)
	if err != nil {
		return nil, err
	}
	exp := Export{SessionID: id, Conversation: history, Timestamp: m.now().UTC()}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// ExpireIdle removes sessions whose last activity is older than ttl and
// returns how many were dropped.
func (m *Manager) ExpireIdle(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		s.mu.RLock()
		idle := s.lastActive.Before(cutoff)
		s.mu.RUnlock()
		if idle {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
