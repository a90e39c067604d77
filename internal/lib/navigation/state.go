package navigation

import "fmt"

// State is the lifecycle state of a navigation session.
type State int

const (
	StateIdle State = iota
	StateRouting
	StateNavigating
	StateSimulating
	StatePaused
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRouting:
		return "routing"
	case StateNavigating:
		return "navigating"
	case StateSimulating:
		return "simulating"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// validTransitions defines allowed state transitions. Navigating falls back
// to Idle when the live source never produces a first sample.
var validTransitions = map[State][]State{
	StateIdle:       {StateRouting, StateNavigating, StateSimulating, StateCompleted},
	StateRouting:    {StateIdle, StateNavigating, StateSimulating, StateCompleted},
	StateNavigating: {StatePaused, StateIdle, StateCompleted},
	StateSimulating: {StatePaused, StateCompleted},
	StatePaused:     {StateNavigating, StateSimulating, StateCompleted},
	StateCompleted:  {}, // terminal
}

// CanTransitionTo checks if transition from current state to target is valid
func (s State) CanTransitionTo(target State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible
func (s State) IsTerminal() bool {
	return s == StateCompleted
}

// IsActive returns true while a position source is attached
func (s State) IsActive() bool {
	return s == StateNavigating || s == StateSimulating
}

// Mode selects the position source driving a session.
type Mode int

const (
	ModeLive Mode = iota
	ModeSimulated
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeSimulated:
		return "simulated"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode converts "live" or "simulated" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "live":
		return ModeLive, nil
	case "simulated", "sim":
		return ModeSimulated, nil
	}
	return 0, fmt.Errorf("invalid session mode: %s", s)
}

func (m Mode) activeState() State {
	if m == ModeSimulated {
		return StateSimulating
	}
	return StateNavigating
}
