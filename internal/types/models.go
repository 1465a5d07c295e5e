// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in a session's conversation history.
// Messages are immutable once appended.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Artifacts  []string   `json:"artifacts,omitempty"`
	At         time.Time  `json:"at"`
}

// ToolCall is a single tool invocation requested by the model.
// Seq increases monotonically within one orchestration turn.
type ToolCall struct {
	Seq       int             `json:"seq"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of exactly one ToolCall, matched by Seq.
// Never mutated after creation.
type ToolResult struct {
	Seq     int             `json:"seq"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ToolError      `json:"error,omitempty"`
}

// ToolError describes a categorized tool-level failure. These are always
// absorbed into a failed ToolResult, never raised past the executor.
type ToolError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ErrorKind categorizes tool-level failures fed back to the model.
type ErrorKind string

const (
	ErrUnknownTool         ErrorKind = "unknown_tool"
	ErrInvalidArguments    ErrorKind = "invalid_arguments"
	ErrProviderUnavailable ErrorKind = "provider_unavailable"
	ErrGenerationFailed    ErrorKind = "generation_failed"
)

// FailedResult builds a failed ToolResult for the given call.
func FailedResult(call ToolCall, kind ErrorKind, message string) ToolResult {
	return ToolResult{
		Seq:     call.Seq,
		ID:      call.ID,
		Name:    call.Name,
		Success: false,
		Error:   &ToolError{Kind: kind, Message: message},
	}
}

// ArtifactKind distinguishes the two generated document types.
type ArtifactKind string

const (
	ArtifactReport    ArtifactKind = "report"
	ArtifactDashboard ArtifactKind = "dashboard"
)

// ArtifactMeta describes a stored artifact. Artifacts are write-once.
type ArtifactMeta struct {
	ID        ArtifactID   `json:"id"`
	Kind      ArtifactKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

// Declaration is the published signature of a registered tool, consumed
// by prompt composition.
type Declaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}
