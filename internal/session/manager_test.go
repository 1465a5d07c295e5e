package session

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/user/wattwise/internal/types"
)

func userMsg(text string) types.Message {
	return types.Message{Role: types.RoleUser, Content: text, At: time.Now()}
}

func TestAppendAndHistory(t *testing.T) {
	m := NewManager()
	id := m.Create()

	if err := m.Append(id, userMsg("hello"), types.Message{Role: types.RoleAssistant, Content: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := m.History(id)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Content != "hello" || history[1].Content != "hi" {
		t.Errorf("history out of order: %+v", history)
	}
}

func TestHistoryIsSnapshot(t *testing.T) {
	m := NewManager()
	id := m.Create()
	if err := m.Append(id, userMsg("one")); err != nil {
		t.Fatal(err)
	}

	snapshot, err := m.History(id)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Append(id, userMsg("two")); err != nil {
		t.Fatal(err)
	}
	if len(snapshot) != 1 {
		t.Errorf("snapshot grew after append: %d messages", len(snapshot))
	}
}

func TestUnknownSession(t *testing.T) {
	m := NewManager()
	bogus := types.SessionID("00000000-0000-0000-0000-000000000000")

	if err := m.Append(bogus, userMsg("x")); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("append: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := m.History(bogus); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("history: expected ErrSessionNotFound, got %v", err)
	}
	if err := m.Reset(bogus); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("reset: expected ErrSessionNotFound, got %v", err)
	}
}

func TestReset(t *testing.T) {
	m := NewManager()
	id := m.Create()
	if err := m.Append(id, userMsg("a"), userMsg("b")); err != nil {
		t.Fatal(err)
	}
	if err := m.Reset(id); err != nil {
		t.Fatalf("reset: %v", err)
	}
	history, err := m.History(id)
	if err != nil {
		t.Fatalf("history after reset: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected empty history after reset, got %d messages", len(history))
	}
	if !m.Exists(id) {
		t.Error("session should survive reset")
	}
}

func TestExportShape(t *testing.T) {
	m := NewManager()
	id := m.Create()
	if err := m.Append(id, userMsg("solar question")); err != nil {
		t.Fatal(err)
	}

	data, err := m.Export(id)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if exp.SessionID != id {
		t.Errorf("session_id = %s, want %s", exp.SessionID, id)
	}
	if len(exp.Conversation) != 1 {
		t.Errorf("conversation length = %d, want 1", len(exp.Conversation))
	}
	if exp.Timestamp.IsZero() {
		t.Error("timestamp missing")
	}
}

func TestConcurrentAppendSingleSession(t *testing.T) {
	m := NewManager()
	id := m.Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Append(id, userMsg("msg"))
		}()
	}
	// Readers race with writers; snapshots must never tear.
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.History(id)
		}()
	}
	wg.Wait()

	history, err := m.History(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 50 {
		t.Errorf("expected 50 messages, got %d", len(history))
	}
}

func TestExpireIdle(t *testing.T) {
	m := NewManager()
	base := time.Now()
	m.now = func() time.Time { return base }

	stale := m.Create()
	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	fresh := m.Create()

	removed := m.ExpireIdle(time.Hour)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if m.Exists(stale) {
		t.Error("stale session should be gone")
	}
	if !m.Exists(fresh) {
		t.Error("fresh session should survive")
	}
}
