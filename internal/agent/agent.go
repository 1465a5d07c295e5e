// Package agent drives the bounded tool-calling loop for one chat turn.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qmuntal/stateless"
	"golang.org/x/sync/errgroup"

	"github.com/user/wattwise/internal/artifact"
	"github.com/user/wattwise/internal/compose"
	"github.com/user/wattwise/internal/delivery"
	"github.com/user/wattwise/internal/session"
	"github.com/user/wattwise/internal/types"
	"github.com/user/wattwise/pkg/llm"
)

// Turn states. The machine enforces that a turn only moves forward:
// compose -> infer -> (dispatch -> infer)* -> done|degraded|failed.
const (
	stateCompose  = "compose"
	stateInfer    = "infer"
	stateDispatch = "dispatch"
	stateDone     = "done"
	stateDegraded = "degraded"
	stateFailed   = "failed"
)

const (
	triggerInfer    = "infer"
	triggerDispatch = "dispatch"
	triggerCompose  = "compose"
	triggerFinish   = "finish"
	triggerDegrade  = "degrade"
	triggerFail     = "fail"
)

func newTurnMachine() *stateless.StateMachine {
	m := stateless.NewStateMachine(stateCompose)
	m.Configure(stateCompose).Permit(triggerInfer, stateInfer)
	m.Configure(stateInfer).
		Permit(triggerDispatch, stateDispatch).
		Permit(triggerFinish, stateDone).
		Permit(triggerDegrade, stateDegraded).
		Permit(triggerFail, stateFailed)
	m.Configure(stateDispatch).
		Permit(triggerCompose, stateCompose).
		Permit(triggerFail, stateFailed)
	return m
}

const degradedAnswer = "I wasn't able to finish researching that within my limits. " +
	"Here is what I can say so far: the request needed more tool work than one turn allows. " +
	"Please narrow the question or try again."

// ArtifactResolver confirms that an artifact path resolves to stored
// content before the answer referencing it is committed.
type ArtifactResolver interface {
	Resolve(ctx context.Context, path string) error
}

// ResolverFunc adapts a function to ArtifactResolver.
type ResolverFunc func(ctx context.Context, path string) error

func (f ResolverFunc) Resolve(ctx context.Context, path string) error { return f(ctx, path) }

// Options bound the loop.
type Options struct {
	// MaxIterations caps provider round trips per turn. Default 5.
	MaxIterations int
	// TurnTimeout bounds the whole turn. Default 120s.
	TurnTimeout time.Duration
	// DispatchConcurrency caps parallel tool calls. Default 4.
	DispatchConcurrency int
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 5
	}
	if o.TurnTimeout <= 0 {
		o.TurnTimeout = 120 * time.Second
	}
	if o.DispatchConcurrency <= 0 {
		o.DispatchConcurrency = 4
	}
	return o
}

// Orchestrator runs chat turns: prompt composition, inference, bounded
// parallel tool dispatch, and history commit.
type Orchestrator struct {
	provider llm.Provider
	composer *compose.Composer
	sessions *session.Manager
	executor types.ToolExecutor
	resolver ArtifactResolver
	events   *delivery.Registry
	opts     Options
	logger   *slog.Logger
}

func New(
	provider llm.Provider,
	composer *compose.Composer,
	sessions *session.Manager,
	executor types.ToolExecutor,
	resolver ArtifactResolver,
	events *delivery.Registry,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		composer: composer,
		sessions: sessions,
		executor: executor,
		resolver: resolver,
		events:   events,
		opts:     opts.withDefaults(),
		logger:   logger.With("component", "agent"),
	}
}

// Turn is the committed outcome of one chat turn.
type Turn struct {
	Answer    string
	Artifacts []string
	Degraded  bool
}

// RunTurn processes one user message. The turn runs on a context detached
// from the caller, so a client disconnect does not cancel in-flight work;
// only the per-turn timeout does. On a fatal error the session history is
// untouched.
func (o *Orchestrator) RunTurn(ctx context.Context, id types.SessionID, text string) (*Turn, error) {
	history, err := o.sessions.History(id)
	if err != nil {
		return nil, err
	}

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.TurnTimeout)
	defer cancel()

	o.events.Publish(id, delivery.Event{Type: delivery.EventProcessingStarted})

	turn, err := o.runLoop(tctx, id, history, text)
	if err != nil {
		o.events.Publish(id, delivery.Event{Type: delivery.EventProcessingFinished})
		return nil, err
	}

	o.events.Publish(id, delivery.Event{
		Type:     delivery.EventProcessingFinished,
		Response: turn.Answer,
	})
	return turn, nil
}

func (o *Orchestrator) runLoop(ctx context.Context, id types.SessionID, history []types.Message, text string) (*Turn, error) {
	decls, err := o.executor.Declarations(ctx)
	if err != nil {
		// Inference can still answer without tools.
		o.logger.Warn("tool declarations unavailable", "err", err)
		decls = nil
	}

	machine := newTurnMachine()
	staged := []types.Message{{Role: types.RoleUser, Content: text, At: time.Now().UTC()}}
	seq := 0

	for iteration := 0; ; iteration++ {
		if machine.MustState() != stateCompose {
			return nil, fmt.Errorf("unexpected turn state %v", machine.MustState())
		}
		req := o.composer.Compose(history, staged, decls)
		if err := machine.Fire(triggerInfer); err != nil {
			return nil, err
		}

		resp, err := o.provider.Complete(ctx, req)
		if err != nil {
			machine.Fire(triggerFail)
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				o.logger.Error("turn timed out", "session", id, "iteration", iteration)
				return nil, fmt.Errorf("%w: %v", ErrTurnTimeout, err)
			}
			o.logger.Error("inference failed", "session", id, "err", err)
			return nil, fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
		}

		if len(resp.ToolCalls) == 0 {
			if err := machine.Fire(triggerFinish); err != nil {
				return nil, err
			}
			return o.commit(ctx, id, staged, resp.Content, false)
		}

		// The model wants more tool rounds than the loop allows; answer
		// with the degraded fallback instead of looping forever.
		if iteration == o.opts.MaxIterations-1 {
			if err := machine.Fire(triggerDegrade); err != nil {
				return nil, err
			}
			o.logger.Warn("iteration budget exhausted", "session", id, "iterations", o.opts.MaxIterations)
			return o.commit(ctx, id, staged, degradedAnswer, true)
		}

		if err := machine.Fire(triggerDispatch); err != nil {
			return nil, err
		}
		calls := make([]types.ToolCall, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			calls[i] = types.ToolCall{
				Seq:       seq,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			}
			seq++
		}
		staged = append(staged, types.Message{
			Role:      types.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: calls,
			At:        time.Now().UTC(),
		})

		results := o.dispatch(ctx, calls)
		if err := ctx.Err(); err != nil {
			machine.Fire(triggerFail)
			return nil, fmt.Errorf("%w: %v", ErrTurnTimeout, err)
		}
		for _, res := range results {
			staged = append(staged, resultMessage(res))
		}

		if err := machine.Fire(triggerCompose); err != nil {
			return nil, err
		}
	}
}

// dispatch runs the calls concurrently under the configured bound and
// returns results slotted by their position, so reassembly preserves the
// model's sequence numbering regardless of completion order.
func (o *Orchestrator) dispatch(ctx context.Context, calls []types.ToolCall) []types.ToolResult {
	results := make([]types.ToolResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.DispatchConcurrency)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = o.executor.Execute(gctx, call)
			return nil
		})
	}
	g.Wait()
	return results
}

func resultMessage(res types.ToolResult) types.Message {
	content, err := json.Marshal(res)
	if err != nil {
		content = []byte(`{"success":false,"error":{"kind":"generation_failed","message":"encode result"}}`)
	}
	return types.Message{
		Role:       types.RoleTool,
		Content:    string(content),
		ToolCallID: res.ID,
		At:         time.Now().UTC(),
	}
}

// commit verifies artifact refs in the answer, then appends the staged
// turn plus the final assistant message to history in one batch.
func (o *Orchestrator) commit(ctx context.Context, id types.SessionID, staged []types.Message, answer string, degraded bool) (*Turn, error) {
	refs := artifact.ExtractRefs(answer)
	for _, ref := range refs {
		if err := o.resolver.Resolve(ctx, ref); err != nil {
			o.logger.Error("artifact ref does not resolve", "session", id, "ref", ref, "err", err)
			return nil, fmt.Errorf("%w: %s", ErrDanglingArtifact, ref)
		}
	}

	final := types.Message{
		Role:      types.RoleAssistant,
		Content:   answer,
		Artifacts: refs,
		At:        time.Now().UTC(),
	}
	if err := o.sessions.Append(id, append(staged, final)...); err != nil {
		return nil, err
	}
	return &Turn{Answer: answer, Artifacts: refs, Degraded: degraded}, nil
}
