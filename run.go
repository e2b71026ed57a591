package pullstream

import (
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// RunOption configures a single graph run.
type RunOption func(*engine)

// WithLogger sets the engine logger. The default discards all output.
func WithLogger(log *slog.Logger) RunOption {
	return func(e *engine) {
		e.log = log
	}
}

// WithOnStall registers a callback receiving the stall diagnostic before
// the run terminates with the same *StallError. Useful in tests asserting
// on the deadlock shape.
func WithOnStall(fn func(*StallError)) RunOption {
	return func(e *engine) {
		e.onStall = fn
	}
}

// WithMaxSteps bounds the number of signal deliveries; exceeding it ends
// the run with ErrStepBudget. This is the bounded-step driver that keeps
// tests over infinite sources finite.
func WithMaxSteps(n int) RunOption {
	return func(e *engine) {
		e.maxSteps = n
	}
}

// Handle controls a running graph.
type Handle struct {
	eng *engine
	eg  *errgroup.Group
}

// Start begins driving the graph on its own goroutine. Outputs are
// delivered to the registered sink callbacks; Wait reports the terminal
// outcome.
func Start(g *Graph, opts ...RunOption) *Handle {
	eng := newEngine(g, opts...)
	eg := &errgroup.Group{}
	eg.Go(eng.run)
	return &Handle{eng: eng, eg: eg}
}

// Wait blocks until the graph reaches a terminal state. It returns nil on
// normal completion, or an error unwrapping to ErrCancelled, ErrStalled, a
// *StageError or a *WiringError cause.
func (h *Handle) Wait() error {
	return h.eg.Wait()
}

// Cancel requests early termination. Every stage reaches a terminal state
// within one signal-propagation pass and no further sink callbacks are
// delivered afterwards. Safe to call multiple times and from sink
// callbacks.
func (h *Handle) Cancel() {
	h.eng.requestCancel()
}

// Run drives the graph to completion synchronously. See Handle.Wait for
// the error contract.
func Run(g *Graph, opts ...RunOption) error {
	return Start(g, opts...).Wait()
}

// NullWriter is a writer that discards all data.
type NullWriter struct{}

func (NullWriter) Write(p []byte) (int, error) { return len(p), nil }

// NullLogger creates a logger that discards all output.
func NullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(NullWriter{}, nil))
}
