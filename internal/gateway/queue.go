// Package gateway serializes turns per session while letting independent
// sessions run concurrently under a global limit.
package gateway

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/user/wattwise/internal/agent"
	"github.com/user/wattwise/internal/types"
)

// Processor runs one turn to completion.
type Processor func(ctx context.Context, id types.SessionID, text string) (*agent.Turn, error)

// Inbound is one queued chat message. OnComplete fires exactly once, from
// the lane goroutine.
type Inbound struct {
	ID         types.TurnID
	SessionID  types.SessionID
	Text       string
	Ctx        context.Context
	OnComplete func(*agent.Turn, error)
}

type lane struct {
	pending []*Inbound
	running bool
}

// Queue gives each session a FIFO lane: turns within one session never
// overlap, and a weighted semaphore caps turns in flight across sessions.
type Queue struct {
	mu      sync.Mutex
	lanes   map[types.SessionID]*lane
	sem     *semaphore.Weighted
	process Processor
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func NewQueue(maxConcurrent int64, process Processor, logger *slog.Logger) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Queue{
		lanes:   make(map[types.SessionID]*lane),
		sem:     semaphore.NewWeighted(maxConcurrent),
		process: process,
		logger:  logger.With("component", "gateway"),
	}
}

// Enqueue adds a turn to its session's lane and starts the lane drainer
// if idle.
func (q *Queue) Enqueue(in *Inbound) {
	q.mu.Lock()
	l, ok := q.lanes[in.SessionID]
	if !ok {
		l = &lane{}
		q.lanes[in.SessionID] = l
	}
	l.pending = append(l.pending, in)
	start := !l.running
	if start {
		l.running = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if start {
		go q.drain(in.SessionID, l)
	}
}

func (q *Queue) drain(id types.SessionID, l *lane) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(l.pending) == 0 {
			l.running = false
			delete(q.lanes, id)
			q.mu.Unlock()
			return
		}
		in := l.pending[0]
		l.pending = l.pending[1:]
		q.mu.Unlock()

		q.run(in)
	}
}

func (q *Queue) run(in *Inbound) {
	ctx := in.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := q.sem.Acquire(ctx, 1); err != nil {
		in.OnComplete(nil, err)
		return
	}
	defer q.sem.Release(1)

	q.logger.Debug("turn started", "session", in.SessionID, "turn", in.ID)
	turn, err := q.process(ctx, in.SessionID, in.Text)
	if err != nil {
		q.logger.Warn("turn failed", "session", in.SessionID, "turn", in.ID, "err", err)
	}
	in.OnComplete(turn, err)
}

// WaitIdle blocks until every lane has drained. For shutdown and tests.
func (q *Queue) WaitIdle() {
	q.wg.Wait()
}
