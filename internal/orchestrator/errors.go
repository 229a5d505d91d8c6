package orchestrator

import (
	"fmt"
	"strings"
)

// Phase names the step of a turn where an error occurred
type Phase int

const (
	PhaseClassify Phase = iota
	PhasePlan
	PhaseRun
	PhaseReflect
	PhaseMemory
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	switch p {
	case PhaseClassify:
		return "classify"
	case PhasePlan:
		return "plan"
	case PhaseRun:
		return "run"
	case PhaseReflect:
		return "reflect"
	case PhaseMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// TurnError reports which phase of a turn failed and, when known, on which
// task.
type TurnError struct {
	Phase Phase
	Task  string
	Err   error
}

// Error implements the error interface for TurnError.
func (e *TurnError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("turn failed during %s", e.Phase))
	if e.Task != "" {
		sb.WriteString(fmt.Sprintf(" (task %q)", e.Task))
	}
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *TurnError) Unwrap() error {
	return e.Err
}
