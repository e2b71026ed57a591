package pullstream

import (
	"log/slog"
)

// runtimeStage is the engine-facing contract of an instantiated stage. A
// concrete stage reacts to demand arriving on an output port and to
// elements/completion arriving on an input port, and may emit elements,
// request upstream demand, or complete its outputs through the StageContext.
//
// Callbacks run on the engine's signal loop and are never invoked
// concurrently with themselves. A non-nil error fails the whole graph.
type runtimeStage interface {
	// Init is called once before any signal is delivered. Stages that
	// initiate demand (sinks, buffers) issue their initial requests here.
	Init(ctx *StageContext) error

	// OnDemand is delivered after downstream granted n more credits on
	// output port out. The total unconsumed credit is ctx.Demand(out).
	OnDemand(ctx *StageContext, out int, n int) error

	// OnElement is delivered for each element arriving on input port in.
	OnElement(ctx *StageContext, in int, el any) error

	// OnComplete is delivered once when the upstream connection of input
	// port in has no more elements.
	OnComplete(ctx *StageContext, in int) error

	// Close releases stage resources. Called exactly once, when the stage
	// reaches a terminal state or the graph is torn down.
	Close() error
}

// asyncStage is implemented by stages fed from outside the signal loop
// (channel sources). OnAvail is delivered when the pump goroutine handed an
// element (or EOF) to the engine.
type asyncStage interface {
	OnAvail(ctx *StageContext, el any, eof bool) error
}

// cancelAware is implemented by stages with more than one output port.
// OnCancel is delivered when the downstream of output port out terminated
// early, so the stage can stop waiting for demand that will never come.
type cancelAware interface {
	OnCancel(ctx *StageContext, out int) error
}

// queuer exposes internal queue depth to the stall diagnostic.
type queuer interface {
	buffered() int
}

// StageContext is a stage's handle to the engine, scoped to that stage's own
// ports. All methods enqueue signals; nothing is delivered re-entrantly.
type StageContext struct {
	eng  *engine
	node *nodeRuntime
}

// Emit sends el downstream on output port out, consuming exactly one unit of
// demand. Emitting without demand is a contract violation that fails the
// graph.
func (c *StageContext) Emit(out int, el any) {
	conn := c.node.outs[out]
	if conn.credit <= 0 {
		c.eng.fail(c.node, &portViolation{port: c.node.spec.outs[out].name})
		return
	}
	conn.credit--
	c.eng.push(signal{kind: sigElement, conn: conn, elem: el})
}

// Request grants n more units of demand to the upstream connection of input
// port in. n <= 0 is a no-op.
func (c *StageContext) Request(in int, n int) {
	if n <= 0 {
		return
	}
	c.eng.push(signal{kind: sigDemand, conn: c.node.ins[in], n: n})
}

// Complete signals that output port out will emit no more elements.
// Elements emitted before the call are still delivered first.
func (c *StageContext) Complete(out int) {
	conn := c.node.outs[out]
	if conn.closeSent {
		return
	}
	conn.closeSent = true
	c.eng.push(signal{kind: sigComplete, conn: conn})
}

// Demand returns the unconsumed credit currently held by output port out.
func (c *StageContext) Demand(out int) int {
	return c.node.outs[out].credit
}

// Closed reports whether output port out can no longer carry elements,
// either because the stage completed it or because its downstream
// terminated early.
func (c *StageContext) Closed(out int) bool {
	conn := c.node.outs[out]
	return conn.closeSent || conn.cancelled
}

// Log returns the engine logger.
func (c *StageContext) Log() *slog.Logger {
	return c.eng.log
}

type portViolation struct {
	port string
}

func (v *portViolation) Error() string {
	return "port " + v.port + ": " + ErrDemandViolated.Error()
}

func (v *portViolation) Unwrap() error { return ErrDemandViolated }
