package llm

import "context"

// Provider is a chat-completion backend with tool calling.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
