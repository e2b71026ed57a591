package pullstream

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNodeAlreadyExists = errors.New("node exists already")
	ErrNodeNotFound      = errors.New("node not found")

	ErrPortUnconnected  = errors.New("port is not connected")
	ErrNoFreePort       = errors.New("no free port for connection")
	ErrPortTypeMismatch = errors.New("port element types do not match")
	ErrNoSource         = errors.New("graph has no source stage")
	ErrNoSink           = errors.New("graph has no sink stage")

	ErrStalled        = errors.New("graph stalled")
	ErrCancelled      = errors.New("graph cancelled")
	ErrDemandViolated = errors.New("element emitted without demand")
	ErrStepBudget     = errors.New("signal step budget exhausted")
)

// WiringError reports a build-time graph assembly problem. The graph never
// starts; Build returns all wiring errors it found at once.
type WiringError struct {
	Node NodeID
	Port string
	Err  error
}

func (e *WiringError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("wiring: node %q port %q: %v", e.Node, e.Port, e.Err)
	}
	return fmt.Sprintf("wiring: node %q: %v", e.Node, e.Err)
}

func (e *WiringError) Unwrap() error { return e.Err }

// StageError reports a failure inside a stage's processing logic. It aborts
// the whole graph; no partial results are delivered after it.
type StageError struct {
	Node NodeID
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.Node, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StallError is the runtime diagnostic for a graph in which no stage can
// make progress: every running stage is waiting on a signal no other stage
// will produce. It unwraps to ErrStalled.
type StallError struct {
	Stages []StalledStage
}

// StalledStage describes one non-terminal stage at the moment of the stall,
// with a human-readable condition per blocked port.
type StalledStage struct {
	Node       NodeID
	Conditions []string
}

func (e *StallError) Error() string {
	var sb strings.Builder
	sb.WriteString("graph stalled: ")
	for i, s := range e.Stages {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s (%s)", s.Node, strings.Join(s.Conditions, ", "))
	}
	return sb.String()
}

func (e *StallError) Unwrap() error { return ErrStalled }
