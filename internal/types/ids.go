// internal/types/ids.go
package types

import "github.com/google/uuid"

type SessionID string
type TurnID string
type ArtifactID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}

func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.New().String())
}

// IsArtifactID reports whether s parses as a canonical UUID string.
func IsArtifactID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
