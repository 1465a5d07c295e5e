package agent

import "errors"

// Turn-fatal errors. When these surface, the session history is left
// exactly as it was before the turn.
var (
	// ErrInferenceUnavailable means the model provider could not be
	// reached or returned a transport-level failure.
	ErrInferenceUnavailable = errors.New("inference unavailable")
	// ErrTurnTimeout means the per-turn deadline elapsed before the
	// loop produced a final answer.
	ErrTurnTimeout = errors.New("turn timed out")
	// ErrDanglingArtifact means the final answer referenced an artifact
	// path that does not resolve in the store.
	ErrDanglingArtifact = errors.New("answer references unknown artifact")
)
