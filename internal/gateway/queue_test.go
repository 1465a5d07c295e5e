package gateway

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/wattwise/internal/agent"
	"github.com/user/wattwise/internal/types"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSameSessionSerializes(t *testing.T) {
	var active, maxActive atomic.Int32
	process := func(ctx context.Context, id types.SessionID, text string) (*agent.Turn, error) {
		cur := active.Add(1)
		for {
			prev := maxActive.Load()
			if cur <= prev || maxActive.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return &agent.Turn{Answer: text}, nil
	}

	q := NewQueue(8, process, discard())
	sid := types.NewSessionID()
	var order []string
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, text := range []string{"first", "second", "third"} {
		wg.Add(1)
		q.Enqueue(&Inbound{
			ID: types.NewTurnID(), SessionID: sid, Text: text,
			OnComplete: func(turn *agent.Turn, err error) {
				mu.Lock()
				order = append(order, turn.Answer)
				mu.Unlock()
				wg.Done()
			},
		})
	}
	wg.Wait()
	q.WaitIdle()

	if got := maxActive.Load(); got != 1 {
		t.Errorf("max concurrent turns in one session = %d, want 1", got)
	}
	if order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Errorf("FIFO order broken: %v", order)
	}
}

func TestIndependentSessionsRunConcurrently(t *testing.T) {
	gate := make(chan struct{})
	var waiting atomic.Int32
	process := func(ctx context.Context, id types.SessionID, text string) (*agent.Turn, error) {
		waiting.Add(1)
		<-gate
		return &agent.Turn{}, nil
	}

	q := NewQueue(8, process, discard())
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		q.Enqueue(&Inbound{
			ID: types.NewTurnID(), SessionID: types.NewSessionID(), Text: "go",
			OnComplete: func(*agent.Turn, error) { wg.Done() },
		})
	}

	// All three sessions should reach the gate together.
	deadline := time.After(time.Second)
	for waiting.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d sessions running concurrently", waiting.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(gate)
	wg.Wait()
	q.WaitIdle()
}

func TestGlobalLimitHolds(t *testing.T) {
	gate := make(chan struct{})
	var started atomic.Int32
	process := func(ctx context.Context, id types.SessionID, text string) (*agent.Turn, error) {
		started.Add(1)
		<-gate
		return &agent.Turn{}, nil
	}

	q := NewQueue(2, process, discard())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		q.Enqueue(&Inbound{
			ID: types.NewTurnID(), SessionID: types.NewSessionID(), Text: "go",
			OnComplete: func(*agent.Turn, error) { wg.Done() },
		})
	}

	time.Sleep(50 * time.Millisecond)
	if got := started.Load(); got > 2 {
		t.Errorf("started %d turns, limit is 2", got)
	}
	close(gate)
	wg.Wait()
	q.WaitIdle()
}
