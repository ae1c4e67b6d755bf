package refresh

import (
	"fmt"
	"sync"
)

// Phase represents the stage of a refresh cycle.
type Phase int

const (
	Idle Phase = iota
	FanningOut
	Joining
	Normalizing
	Invalidated
)

// String stringifies the provided phase.
func (p Phase) String() string {
	switch p {
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

// next returns the phase that follows the provided phase within a cycle.
func (p Phase) next() (Phase, error) {
	switch p {
	case FanningOut:
		return Joining, nil
	case Joining:
		return Normalizing, nil
	case Normalizing:
		return Invalidated, nil
	default:
		return p, fmt.Errorf("no phase follows %s", p)
	}
}

// machine guards refresh cycles. A cycle can only begin from the idle phase
// and always finishes back in it.
type machine struct {
	phase Phase
	mtx   sync.Mutex
}

// begin moves an idle machine into the fan-out phase. It reports false when a
// cycle is already in flight.
func (m *machine) begin() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.phase != Idle {
		return false
	}

	m.phase = FanningOut
	return true
}

// advance moves the machine to the next phase of the cycle.
func (m *machine) advance() (Phase, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	next, err := m.phase.next()
	if err != nil {
		return m.phase, err
	}

	m.phase = next
	return next, nil
}

// finish returns the machine to the idle phase.
func (m *machine) finish() {
	m.mtx.Lock()
	m.phase = Idle
	m.mtx.Unlock()
}

// current returns the current phase.
func (m *machine) current() Phase {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.phase
}
