package jobstatus

import "strings"

// State represents the lifecycle of a batch run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateError     State = "error"
)

var allStates = []State{
	StateIdle,
	StateRunning,
	StatePaused,
	StateCompleted,
	StateStopped,
	StateError,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

type stateTransition struct {
	from State
	to   State
}

var allowedTransitions = func() map[stateTransition]struct{} {
	transitions := []stateTransition{
		{from: StateRunning, to: StatePaused},
		{from: StatePaused, to: StateRunning},
		{from: StateRunning, to: StateCompleted},
		{from: StateRunning, to: StateStopped},
		{from: StatePaused, to: StateStopped},
		{from: StateRunning, to: StateError},
		{from: StatePaused, to: StateError},
	}
	for _, state := range []State{StateIdle, StateCompleted, StateStopped, StateError} {
		transitions = append(transitions, stateTransition{from: state, to: StateRunning})
	}
	set := make(map[stateTransition]struct{}, len(transitions))
	for _, t := range transitions {
		set[t] = struct{}{}
	}
	return set
}()

// AllStates returns every known state in lifecycle order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState normalizes raw into a known State.
func ParseState(raw string) (State, bool) {
	state := State(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := stateSet[state]
	return state, ok
}

// Terminal reports whether a run in this state has finished.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateStopped, StateError:
		return true
	}
	return false
}

// Active reports whether a run in this state still owns the controller.
func (s State) Active() bool {
	return s == StateRunning || s == StatePaused
}

// CanTransition reports whether the lifecycle permits moving from one state to another.
func CanTransition(from, to State) bool {
	if from == to {
		return false
	}
	_, ok := allowedTransitions[stateTransition{from: from, to: to}]
	return ok
}
