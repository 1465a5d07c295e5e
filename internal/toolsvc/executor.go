// Package toolsvc is the tool-execution service: schema-validated dispatch
// into the tool registry plus the HTTP surface the session host calls.
package toolsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	"github.com/user/wattwise/internal/tools"
	"github.com/user/wattwise/internal/types"
)

var _ types.ToolExecutor = (*Executor)(nil)

// Executor validates and dispatches tool calls. Every failure becomes a
// categorized failed ToolResult; Execute never panics or returns an error
// to the caller.
type Executor struct {
	registry *tools.Registry
	schemas  map[string]*jsonschema.Schema
	cache    *resultCache
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// ExecutorOptions tune caching and provider-call throttling.
type ExecutorOptions struct {
	CacheTTL time.Duration
	// RatePerSecond bounds lookup-tool executions; zero means unlimited.
	RatePerSecond float64
	RateBurst     int
}

func NewExecutor(registry *tools.Registry, opts ExecutorOptions, logger *slog.Logger) (*Executor, error) {
	schemas := make(map[string]*jsonschema.Schema)
	for _, t := range registry.All() {
		schema, err := jsonschema.CompileString(t.Name()+".json", string(t.Parameters()))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", t.Name(), err)
		}
		schemas[t.Name()] = schema
	}

	limit := rate.Inf
	burst := 1
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
		if opts.RateBurst > 0 {
			burst = opts.RateBurst
		}
	}

	return &Executor{
		registry: registry,
		schemas:  schemas,
		cache:    newResultCache(opts.CacheTTL),
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger.With("component", "tool-executor"),
	}, nil
}

// Declarations publishes the registry's tool signatures.
func (e *Executor) Declarations(ctx context.Context) ([]types.Declaration, error) {
	return e.registry.Declarations(), nil
}

// Execute runs one tool call. Unknown names, invalid arguments, provider
// failures and generation failures all come back as failed results with
// the matching error kind.
func (e *Executor) Execute(ctx context.Context, call types.ToolCall) types.ToolResult {
	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return types.FailedResult(call, types.ErrUnknownTool, fmt.Sprintf("no tool named %q", call.Name))
	}

	var decoded any
	if err := json.Unmarshal(call.Arguments, &decoded); err != nil {
		return types.FailedResult(call, types.ErrInvalidArguments, fmt.Sprintf("arguments are not valid JSON: %v", err))
	}
	if err := e.schemas[call.Name].Validate(decoded); err != nil {
		return types.FailedResult(call, types.ErrInvalidArguments, err.Error())
	}

	key := ""
	if tool.Class() == tools.ClassLookup {
		key = fingerprint(call.Name, call.Arguments)
		if payload, hit := e.cache.get(key); hit {
			e.logger.Debug("cache hit", "tool", call.Name, "seq", call.Seq)
			return types.ToolResult{Seq: call.Seq, ID: call.ID, Name: call.Name, Success: true, Payload: payload}
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return types.FailedResult(call, types.ErrProviderUnavailable, fmt.Sprintf("rate limit wait: %v", err))
		}
	}

	started := time.Now()
	out, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		kind := types.ErrProviderUnavailable
		if tool.Class() == tools.ClassGeneration {
			kind = types.ErrGenerationFailed
		}
		e.logger.Warn("tool failed", "tool", call.Name, "seq", call.Seq, "kind", string(kind), "err", err)
		return types.FailedResult(call, kind, err.Error())
	}

	payload, err := json.Marshal(out)
	if err != nil {
		kind := types.ErrProviderUnavailable
		if tool.Class() == tools.ClassGeneration {
			kind = types.ErrGenerationFailed
		}
		return types.FailedResult(call, kind, fmt.Sprintf("encode payload: %v", err))
	}

	if key != "" {
		e.cache.put(key, payload)
	}
	e.logger.Debug("tool executed", "tool", call.Name, "seq", call.Seq, "took", time.Since(started))
	return types.ToolResult{Seq: call.Seq, ID: call.ID, Name: call.Name, Success: true, Payload: payload}
}
