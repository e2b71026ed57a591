package pullstream

import (
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"
)

type signalKind uint8

const (
	sigDemand signalKind = iota
	sigElement
	sigComplete
)

// signal is one unit of work for the engine loop: a demand grant travelling
// upstream or an element/completion travelling downstream over a connection.
type signal struct {
	kind signalKind
	conn *connection
	n    int
	elem any
}

type nodeState uint8

const (
	nodeRunning nodeState = iota
	nodeCompleted
	nodeFailed
)

func (s nodeState) String() string {
	switch s {
	case nodeRunning:
		return "RUNNING"
	case nodeCompleted:
		return "COMPLETED"
	default:
		return "FAILED"
	}
}

// connection is the runtime state of one output-to-input port link. credit
// is the demand granted by the downstream side and not yet consumed by an
// emit; it never goes negative.
type connection struct {
	from     *nodeRuntime
	fromPort int
	to       *nodeRuntime
	toPort   int

	credit    int
	closeSent bool // producer declared completion (enqueued)
	completed bool // completion delivered to the consumer
	cancelled bool // downstream is terminal; signals are dropped
}

type nodeRuntime struct {
	id     NodeID
	spec   *graphNode
	stage  runtimeStage
	ins    []*connection
	outs   []*connection
	state  nodeState
	closed bool
	ctx    StageContext
}

// done reports whether the node has nothing left to do. A producer is done
// when it declared completion on (or lost) every output; a pure consumer is
// done when every input completed.
func (n *nodeRuntime) done() bool {
	if len(n.outs) > 0 {
		for _, c := range n.outs {
			if !c.closeSent && !c.cancelled {
				return false
			}
		}
		return true
	}
	for _, c := range n.ins {
		if !c.completed && !c.cancelled {
			return false
		}
	}
	return true
}

type injection struct {
	node *nodeRuntime
	elem any
	eof  bool
}

// engine drives one materialized graph to completion. It is a
// single-threaded cooperative loop over a FIFO signal queue; stage callbacks
// therefore never run concurrently with themselves or each other. External
// input (channel sources, cancellation) enters through channels the loop
// selects on between deliveries.
type engine struct {
	g   *Graph
	log *slog.Logger

	nodes map[NodeID]*nodeRuntime
	order []*nodeRuntime

	queue []signal

	maxSteps int
	onStall  func(*StallError)

	cancelCh   chan struct{}
	cancelOnce sync.Once
	stopCh     chan struct{}
	stopOnce   sync.Once
	injectCh   chan injection
	pumps      int

	err      error // terminal failure (StageError)
	closeErr error // aggregated Close errors
}

func newEngine(g *Graph, opts ...RunOption) *engine {
	e := &engine{
		g:        g,
		log:      NullLogger(),
		nodes:    map[NodeID]*nodeRuntime{},
		cancelCh: make(chan struct{}),
		stopCh:   make(chan struct{}),
		injectCh: make(chan injection),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *engine) push(s signal) {
	e.queue = append(e.queue, s)
}

func (e *engine) fail(n *nodeRuntime, err error) {
	n.state = nodeFailed
	if e.err == nil {
		e.err = &StageError{Node: n.id, Err: err}
	}
}

func (e *engine) requestCancel() {
	e.cancelOnce.Do(func() {
		close(e.cancelCh)
	})
}

func (e *engine) cancelled() bool {
	select {
	case <-e.cancelCh:
		return true
	default:
		return false
	}
}

// start materializes runtime nodes and connections from the build-time
// graph and runs Init in topological order, so sinks issue their initial
// demand after their upstreams exist.
func (e *engine) start() error {
	for _, id := range e.g.order {
		spec := e.g.nodes[id]
		n := &nodeRuntime{
			id:    id,
			spec:  spec,
			stage: spec.build(),
			ins:   make([]*connection, len(spec.ins)),
			outs:  make([]*connection, len(spec.outs)),
		}
		n.ctx = StageContext{eng: e, node: n}
		e.nodes[id] = n
		e.order = append(e.order, n)
	}

	for _, cs := range e.g.conns {
		from := e.nodes[cs.from]
		to := e.nodes[cs.to]
		c := &connection{from: from, fromPort: cs.fromPort, to: to, toPort: cs.toPort}
		from.outs[cs.fromPort] = c
		to.ins[cs.toPort] = c
	}

	for _, n := range e.order {
		if err := n.stage.Init(&n.ctx); err != nil {
			e.fail(n, err)
			return e.err
		}
	}
	e.log.Debug("graph started", "nodes", len(e.order))
	return nil
}

func (e *engine) run() error {
	if err := e.start(); err != nil {
		return multierr.Combine(err, e.closeErr, e.teardown())
	}

	steps := 0
	for {
		for len(e.queue) > 0 {
			if e.cancelled() {
				return e.finishCancelled()
			}
			s := e.queue[0]
			e.queue = e.queue[1:]
			e.deliver(s)
			if e.err != nil {
				return multierr.Combine(e.err, e.closeErr, e.teardown())
			}
			steps++
			if e.maxSteps > 0 && steps > e.maxSteps {
				err := fmt.Errorf("%w: %d deliveries", ErrStepBudget, e.maxSteps)
				return multierr.Combine(err, e.closeErr, e.teardown())
			}
		}

		if e.cancelled() {
			return e.finishCancelled()
		}
		if e.allTerminal() {
			e.log.Debug("graph completed", "steps", steps)
			return multierr.Combine(e.closeErr, e.teardown())
		}
		if e.pumps > 0 {
			// A live async source may still unblock the graph; park.
			select {
			case <-e.cancelCh:
				return e.finishCancelled()
			case inj := <-e.injectCh:
				e.handleInjection(inj)
				if e.err != nil {
					return multierr.Combine(e.err, e.closeErr, e.teardown())
				}
			}
			continue
		}

		stall := e.stallError()
		e.log.Warn("graph stalled", "stages", len(stall.Stages))
		if e.onStall != nil {
			e.onStall(stall)
		}
		return multierr.Combine(stall, e.closeErr, e.teardown())
	}
}

func (e *engine) deliver(s signal) {
	switch s.kind {
	case sigDemand:
		up := s.conn.from
		if s.conn.cancelled || s.conn.closeSent || up.state != nodeRunning {
			return
		}
		s.conn.credit += s.n
		e.invoke(up, func() error {
			return up.stage.OnDemand(&up.ctx, s.conn.fromPort, s.n)
		})
	case sigElement:
		down := s.conn.to
		if s.conn.cancelled || down.state != nodeRunning {
			return
		}
		e.invoke(down, func() error {
			return down.stage.OnElement(&down.ctx, s.conn.toPort, s.elem)
		})
	case sigComplete:
		down := s.conn.to
		s.conn.completed = true
		if s.conn.cancelled || down.state != nodeRunning {
			return
		}
		e.invoke(down, func() error {
			return down.stage.OnComplete(&down.ctx, s.conn.toPort)
		})
	}
}

func (e *engine) invoke(n *nodeRuntime, f func() error) {
	if err := f(); err != nil {
		e.fail(n, err)
		return
	}
	if e.err != nil { // contract violation recorded by the context
		return
	}
	e.maybeFinish(n)
}

// maybeFinish moves a node with no remaining work to the Completed state,
// closes it, and withdraws its input connections so orphaned upstreams
// (e.g. a buffer still draining after an early-completing zip) terminate
// instead of waiting forever.
func (e *engine) maybeFinish(n *nodeRuntime) {
	if n.state != nodeRunning || !n.done() {
		return
	}
	n.state = nodeCompleted
	e.closeNode(n)
	for _, c := range n.ins {
		if c.cancelled {
			continue
		}
		c.cancelled = true
		up := c.from
		port := c.fromPort
		e.maybeFinish(up)
		if up.state == nodeRunning {
			// A fan-out stage waiting for demand on the withdrawn port
			// must re-evaluate against its remaining outputs.
			if ca, ok := up.stage.(cancelAware); ok {
				e.invoke(up, func() error {
					return ca.OnCancel(&up.ctx, port)
				})
			}
		}
	}
}

func (e *engine) closeNode(n *nodeRuntime) {
	if n.closed {
		return
	}
	n.closed = true
	if err := n.stage.Close(); err != nil {
		e.closeErr = multierr.Append(e.closeErr, fmt.Errorf("close %s: %w", n.id, err))
	}
}

func (e *engine) allTerminal() bool {
	for _, n := range e.order {
		if n.state == nodeRunning {
			return false
		}
	}
	return true
}

func (e *engine) handleInjection(inj injection) {
	if inj.eof {
		e.pumps--
	}
	n := inj.node
	if n.state != nodeRunning {
		return
	}
	as, ok := n.stage.(asyncStage)
	if !ok {
		e.fail(n, fmt.Errorf("stage cannot receive injected elements"))
		return
	}
	e.invoke(n, func() error {
		return as.OnAvail(&n.ctx, inj.elem, inj.eof)
	})
	// Drain whatever the injection triggered before parking again.
}

// addPump registers an external producer goroutine for a node. The pump
// calls inject for each element (and once with eof) and must return when
// stop closes or inject returns false.
func (e *engine) addPump(n *nodeRuntime, pump func(stop <-chan struct{}, inject func(el any, eof bool) bool)) {
	e.pumps++
	go pump(e.stopCh, func(el any, eof bool) bool {
		select {
		case e.injectCh <- injection{node: n, elem: el, eof: eof}:
			return true
		case <-e.stopCh:
			return false
		}
	})
}

// teardown brings every remaining stage to a terminal state and releases
// its resources. The signal queue is discarded, so no element is delivered
// after teardown begins.
func (e *engine) teardown() error {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
	e.queue = nil
	var err error
	for _, n := range e.order {
		if n.state == nodeRunning {
			n.state = nodeCompleted
		}
		if !n.closed {
			n.closed = true
			if cerr := n.stage.Close(); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("close %s: %w", n.id, cerr))
			}
		}
	}
	return err
}

func (e *engine) finishCancelled() error {
	e.log.Debug("graph cancelled")
	return multierr.Combine(ErrCancelled, e.closeErr, e.teardown())
}

// stallError snapshots why the graph cannot progress: for every running
// stage, the ports awaiting an element that will never arrive or demand
// that will never be granted, plus buffered element counts.
func (e *engine) stallError() *StallError {
	stall := &StallError{}
	for _, n := range e.order {
		if n.state != nodeRunning {
			continue
		}
		var conds []string
		for i, c := range n.ins {
			if c.credit > 0 && !c.completed && !c.cancelled {
				conds = append(conds, fmt.Sprintf("%s awaiting %d element(s) from %s", n.spec.ins[i].name, c.credit, c.from.id))
			}
		}
		for i, c := range n.outs {
			if c.credit == 0 && !c.closeSent && !c.cancelled {
				conds = append(conds, fmt.Sprintf("%s awaiting demand from %s", n.spec.outs[i].name, c.to.id))
			}
		}
		if q, ok := n.stage.(queuer); ok {
			conds = append(conds, fmt.Sprintf("holding %d buffered element(s)", q.buffered()))
		}
		if len(conds) == 0 {
			conds = append(conds, "idle")
		}
		stall.Stages = append(stall.Stages, StalledStage{Node: n.id, Conditions: conds})
	}
	return stall
}
