package dashboard

import (
	"github.com/dnldd/moodboard/refresh"
)

// State represents the dashboard lifecycle state.
type State int

const (
	Loading State = iota
	Idle
	FanningOut
	Joining
	Normalizing
	Invalidated
)

// String stringifies the provided state.
func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Idle:
		return "idle"
	case FanningOut:
		return "fanning out"
	case Joining:
		return "joining"
	case Normalizing:
		return "normalizing"
	case Invalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its string form.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// stateOf mirrors the provided refresh phase as a dashboard state.
func stateOf(phase refresh.Phase) State {
	switch phase {
	case refresh.FanningOut:
		return FanningOut
	case refresh.Joining:
		return Joining
	case refresh.Normalizing:
		return Normalizing
	case refresh.Invalidated:
		return Invalidated
	default:
		return Idle
	}
}
