// Package tools defines the tool interface and the builtin tool set
// exposed to the model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/user/wattwise/internal/types"
)

// Class separates cacheable lookups from side-effecting generators.
type Class int

const (
	// ClassLookup tools are read-only and safe to cache by request
	// fingerprint.
	ClassLookup Class = iota
	// ClassGeneration tools produce artifacts; never cached.
	ClassGeneration
)

// Tool is one callable capability. Execute returns a JSON-serializable
// payload; errors are classified by the executor according to Class.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Class() Class
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry holds the registered tool set. Safe for concurrent reads
// after registration.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Declarations returns the published signature of every registered tool,
// sorted by name.
func (r *Registry) Declarations() []types.Declaration {
	all := r.All()
	decls := make([]types.Declaration, 0, len(all))
	for _, t := range all {
		decls = append(decls, types.Declaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return decls
}
