package session

import (
	"time"

	"github.com/gofrs/uuid"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateUninitialized State = iota
	StateAcquiring
	StateReady
	StateReleasing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAcquiring:
		return "acquiring"
	case StateReady:
		return "ready"
	case StateReleasing:
		return "releasing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transition is published whenever a session changes its state.
type Transition struct {
	SessionID uuid.UUID
	Scenario  string
	From      State
	To        State
	Time      time.Time
}
