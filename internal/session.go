package internal

import (
	"github.com/google/uuid"
)

// Session identifies one CLI run.
type Session struct {
	id uuid.UUID
}

// GenerateSession creates a new session with a random identifier.
func GenerateSession() Session {
	return Session{id: uuid.New()}
}

// String returns the string representation of the session, equivalent to calling ID().
func (s Session) String() string {
	return string(s.ID())
}

// ID returns the run ID of the session: the first eight hex digits of its
// UUID, which keeps container names readable.
func (s Session) ID() RunID {
	return RunID(s.id.String()[:8])
}

// UUID returns the full session identifier.
func (s Session) UUID() uuid.UUID {
	return s.id
}
