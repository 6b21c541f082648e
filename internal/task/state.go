package task

import "errors"

// State represents the current lifecycle state of a task.
type State string

// Possible task lifecycle states. COMPLETED and FAILED are terminal: no
// further transition is permitted out of them.
const (
	StateCreated              State = "CREATED"
	StateAwaitingDependencies State = "AWAITING_DEPENDENCIES"
	StateCollecting           State = "COLLECTING"
	StateOperating            State = "OPERATING"
	StateProducingResult      State = "PRODUCING_RESULT"
	StateRetrying             State = "RETRYING"
	StateRestarting           State = "RESTARTING"
	StateCompleted            State = "COMPLETED"
	StateFailed               State = "FAILED"
)

// Common errors returned by the engine.
var (
	ErrTerminalState     = errors.New("task is in a terminal state")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyStarted    = errors.New("task has already started")
	ErrSelfDependency    = errors.New("task cannot depend on itself")
	ErrDependencyCycle   = errors.New("dependency cycle detected")
)

// Terminal reports whether no further transition is permitted.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// transitions lists the permitted next states for each state. FAILED is
// additionally reachable from every non-terminal state, which transition()
// handles without consulting the table.
var transitions = map[State][]State{
	StateCreated:              {StateAwaitingDependencies},
	StateAwaitingDependencies: {StateCollecting},
	StateCollecting:           {StateOperating},
	StateOperating:            {StateProducingResult, StateCompleted, StateRestarting},
	StateProducingResult:      {StateOperating, StateRetrying},
	StateRetrying:             {StateProducingResult, StateOperating},
	StateRestarting:           {StateAwaitingDependencies},
}

// allowed reports whether from may transition to to.
func allowed(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
