// internal/types/interfaces.go
package types

import "context"

// ArtifactStore is durable, write-once storage for generated documents.
type ArtifactStore interface {
	Put(ctx context.Context, kind ArtifactKind, content []byte) (ArtifactID, error)
	Get(ctx context.Context, id ArtifactID) ([]byte, error)
	Meta(ctx context.Context, id ArtifactID) (*ArtifactMeta, error)
}

// ToolExecutor dispatches tool calls and publishes tool declarations.
// Execute never returns a Go error: every failure is a failed ToolResult.
type ToolExecutor interface {
	Declarations(ctx context.Context) ([]Declaration, error)
	Execute(ctx context.Context, call ToolCall) ToolResult
}
