// Package compose builds provider prompts from session history under a
// token budget.
package compose

import (
	"fmt"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/wattwise/internal/types"
	"github.com/user/wattwise/pkg/llm"
)

const systemPrompt = `You are WattWise, an expert renewable energy consultant. You help users
understand renewable energy technologies, analyze project economics, navigate
policies and incentives, and monitor facilities.

You have tools for fetching generation data, calculating ROI, looking up
policies, searching the knowledge base, searching the web, generating HTML
reports and creating monitoring dashboards. Use them whenever they would
improve your answer. When a tool returns an artifact path, include that path
in your answer so the user can open it.

Be concrete and quantitative. If a tool fails, say what you could not
retrieve and answer with what you have.`

// Composer assembles completion requests. History is trimmed oldest-first
// so the most recent exchange always survives the budget.
type Composer struct {
	enc    *tiktoken.Tiktoken
	budget int
	now    func() time.Time
}

// NewComposer builds a composer with the given history token budget.
func NewComposer(budget int) (*Composer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	if budget <= 0 {
		budget = 8000
	}
	return &Composer{enc: enc, budget: budget, now: time.Now}, nil
}

func (c *Composer) countTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Compose builds the request for one inference step: persona system prompt,
// budgeted history, then any staged messages from the current turn (which
// are never trimmed), plus the tool declarations.
func (c *Composer) Compose(history, staged []types.Message, decls []types.Declaration) llm.Request {
	system := llm.Message{
		Role:    llm.RoleSystem,
		Content: systemPrompt + "\n\nCurrent date: " + c.now().UTC().Format("2006-01-02"),
	}

	// Walk history newest-backward until the budget runs out, then restore
	// chronological order.
	var kept []types.Message
	remaining := c.budget
	for i := len(history) - 1; i >= 0; i-- {
		cost := c.countTokens(history[i].Content) + 8
		if cost > remaining {
			break
		}
		remaining -= cost
		kept = append(kept, history[i])
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	msgs := make([]llm.Message, 0, len(kept)+len(staged)+1)
	msgs = append(msgs, system)
	for _, m := range kept {
		msgs = append(msgs, toLLM(m))
	}
	for _, m := range staged {
		msgs = append(msgs, toLLM(m))
	}

	return llm.Request{Messages: msgs, Tools: toLLMTools(decls)}
}

func toLLM(m types.Message) llm.Message {
	out := llm.Message{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: llm.FunctionCall{
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			},
		})
	}
	return out
}

func toLLMTools(decls []types.Declaration) []llm.Tool {
	if len(decls) == 0 {
		return nil
	}
	out := make([]llm.Tool, 0, len(decls))
	for _, d := range decls {
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}
