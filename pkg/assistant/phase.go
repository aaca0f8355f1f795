// Package assistant implements the per-request orchestration state machine:
// understand, plan, execute, verify, reflect. One run handles one user
// request end to end, driving the model router and the tool executor.
package assistant

import (
	"fmt"
)

// Phase is the orchestration state for one run.
type Phase int

const (
	PhaseUnderstand Phase = iota
	PhasePlan
	PhaseExecute
	PhaseVerify
	PhaseReflect
	PhaseDone
)

var validTransitions = map[Phase]map[Phase]struct{}{
	PhaseUnderstand: {
		PhasePlan:    {},
		PhaseReflect: {},
	},
	PhasePlan: {
		PhaseExecute: {},
		PhaseReflect: {},
	},
	PhaseExecute: {
		PhaseVerify: {},
	},
	PhaseVerify: {
		PhaseExecute:    {},
		PhaseUnderstand: {},
		PhaseReflect:    {},
	},
	PhaseReflect: {
		PhaseDone: {},
	},
}

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseUnderstand:
		return "understand"
	case PhasePlan:
		return "plan"
	case PhaseExecute:
		return "execute"
	case PhaseVerify:
		return "verify"
	case PhaseReflect:
		return "reflect"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the phase ends the run.
func (p Phase) IsTerminal() bool { return p == PhaseDone }

// CanTransitionTo checks whether a phase transition is valid.
func (p Phase) CanTransitionTo(next Phase) bool {
	validNext, ok := validTransitions[p]
	if !ok {
		return false
	}
	_, ok = validNext[next]
	return ok
}

// ValidateTransition validates transition semantics.
func ValidateTransition(current, next Phase) error {
	if !current.CanTransitionTo(next) {
		return fmt.Errorf("invalid phase transition: %s -> %s", current, next)
	}
	return nil
}
