package pullstream

import (
	"fmt"
)

// GraphBuilder assembles stages and connections into a validated Graph.
// Stages are registered under unique names with the package-level Register
// functions; connections are declared either implicitly (the parent argument
// of a Register call) or explicitly with Connect. Ports are allocated in
// declaration order: the first connection from a node uses its first free
// output port, and so on.
type GraphBuilder struct {
	nodes     map[NodeID]*graphNode
	nodeOrder []NodeID
	conns     []connSpec

	outUsed map[NodeID]int
	inUsed  map[NodeID]int
}

func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		nodes:   map[NodeID]*graphNode{},
		outUsed: map[NodeID]int{},
		inUsed:  map[NodeID]int{},
	}
}

func (b *GraphBuilder) addNode(name string, ins, outs []portSpec, build func() runtimeStage) error {
	id := NodeID(name)
	if _, found := b.nodes[id]; found {
		return fmt.Errorf("%w: %s", ErrNodeAlreadyExists, name)
	}
	b.nodes[id] = &graphNode{id: id, ins: ins, outs: outs, build: build}
	b.nodeOrder = append(b.nodeOrder, id)
	return nil
}

// Connect wires the next free output port of parent to the next free input
// port of child, checking port availability and element types. A connection
// beyond a node's arity is a duplicate-connection WiringError.
func (b *GraphBuilder) Connect(parent, child string) error {
	from, ok := b.nodes[NodeID(parent)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, parent)
	}
	to, ok := b.nodes[NodeID(child)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, child)
	}

	op := b.outUsed[from.id]
	if op >= len(from.outs) {
		return &WiringError{Node: from.id, Err: fmt.Errorf("%w: all %d output ports already connected", ErrNoFreePort, len(from.outs))}
	}
	ip := b.inUsed[to.id]
	if ip >= len(to.ins) {
		return &WiringError{Node: to.id, Err: fmt.Errorf("%w: all %d input ports already connected", ErrNoFreePort, len(to.ins))}
	}

	if from.outs[op].elem != to.ins[ip].elem {
		return &WiringError{
			Node: from.id,
			Port: from.outs[op].name,
			Err:  fmt.Errorf("%w: %s emits %s, %s.%s accepts %s", ErrPortTypeMismatch, from.outs[op].name, from.outs[op].elem, to.id, to.ins[ip].name, to.ins[ip].elem),
		}
	}

	b.conns = append(b.conns, connSpec{from: from.id, fromPort: op, to: to.id, toPort: ip})
	b.outUsed[from.id] = op + 1
	b.inUsed[to.id] = ip + 1
	return nil
}

func (b *GraphBuilder) MustConnect(parent, child string) {
	must(b.Connect(parent, child))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// RegisterSource registers a source stage producing elements from next.
// next returns the next element and true, or false on exhaustion.
func RegisterSource[T any](b *GraphBuilder, name string, next SourceFunc[T]) error {
	return b.addNode(name, nil, outPort[T]("out"), func() runtimeStage {
		return &sourceStage[T]{next: next}
	})
}

func MustRegisterSource[T any](b *GraphBuilder, name string, next SourceFunc[T]) {
	must(RegisterSource(b, name, next))
}

// RegisterChannelSource registers a source fed from ch. The engine parks on
// the channel instead of reporting a stall while the source is live;
// closing ch completes the source. The source reads ahead of signalled
// demand by at most its slack (default one element); past that, sends on ch
// block until the graph consumes.
func RegisterChannelSource[T any](b *GraphBuilder, name string, ch <-chan T, opts ...ChannelSourceOption) error {
	cfg := channelSourceConfig{slack: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	return b.addNode(name, nil, outPort[T]("out"), func() runtimeStage {
		return &channelSource[T]{ch: ch, slack: cfg.slack}
	})
}

func MustRegisterChannelSource[T any](b *GraphBuilder, name string, ch <-chan T, opts ...ChannelSourceOption) {
	must(RegisterChannelSource(b, name, ch, opts...))
}

// RegisterSink registers a terminal stage invoking fn for every received
// element. The sink issues one unit of demand up front plus one per
// processed element; WithSinkPrefetch adds explicit lookahead.
func RegisterSink[T any](b *GraphBuilder, name string, fn func(T) error, parent string, opts ...SinkOption) error {
	cfg := sinkConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	err := b.addNode(name, inPort[T]("in"), nil, func() runtimeStage {
		return &sinkStage[T]{fn: fn, prefetch: cfg.prefetch}
	})
	if err != nil {
		return err
	}
	return b.Connect(parent, name)
}

func MustRegisterSink[T any](b *GraphBuilder, name string, fn func(T) error, parent string, opts ...SinkOption) {
	must(RegisterSink(b, name, fn, parent, opts...))
}

// RegisterMap registers a 1:1 transformation stage. Demand passes through
// unmodified; every received element yields exactly one emitted element.
func RegisterMap[I, O any](b *GraphBuilder, name string, fn func(I) (O, error), parent string) error {
	err := b.addNode(name, inPort[I]("in"), outPort[O]("out"), func() runtimeStage {
		return &mapStage[I, O]{fn: fn}
	})
	if err != nil {
		return err
	}
	return b.Connect(parent, name)
}

func MustRegisterMap[I, O any](b *GraphBuilder, name string, fn func(I) (O, error), parent string) {
	must(RegisterMap(b, name, fn, parent))
}

// RegisterDrop registers a stage discarding the first offset elements and
// passing everything after through 1:1.
func RegisterDrop[T any](b *GraphBuilder, name string, offset int, parent string) error {
	if offset < 0 {
		return &WiringError{Node: NodeID(name), Err: fmt.Errorf("drop offset must be >= 0, got %d", offset)}
	}
	err := b.addNode(name, inPort[T]("in"), outPort[T]("out"), func() runtimeStage {
		return &dropStage{toDrop: offset, offset: offset}
	})
	if err != nil {
		return err
	}
	return b.Connect(parent, name)
}

func MustRegisterDrop[T any](b *GraphBuilder, name string, offset int, parent string) {
	must(RegisterDrop[T](b, name, offset, parent))
}

// RegisterBroadcast registers a fan-out stage with k output ports. It
// requests an input element only when every output holds demand and emits
// the element on all outputs simultaneously. Balancing uneven downstream
// branches is a composition concern; see PlanBuffers.
func RegisterBroadcast[T any](b *GraphBuilder, name string, k int, parent string) error {
	if k < 2 {
		return &WiringError{Node: NodeID(name), Err: fmt.Errorf("broadcast needs at least 2 outputs, got %d", k)}
	}
	err := b.addNode(name, inPort[T]("in"), fanPorts[T]("out", k), func() runtimeStage {
		return &broadcastStage{k: k}
	})
	if err != nil {
		return err
	}
	return b.Connect(parent, name)
}

func MustRegisterBroadcast[T any](b *GraphBuilder, name string, k int, parent string) {
	must(RegisterBroadcast[T](b, name, k, parent))
}

// RegisterZip2 registers a two-input fan-in stage combining one element from
// each input per emitted element.
func RegisterZip2[A, B, O any](b *GraphBuilder, name string, combine func(A, B) (O, error), parentA, parentB string) error {
	ins := append(inPort[A]("in0"), inPort[B]("in1")...)
	err := b.addNode(name, ins, outPort[O]("out"), func() runtimeStage {
		return newZipStage(2, func(slots []any) (any, error) {
			return combine(slots[0].(A), slots[1].(B))
		})
	})
	if err != nil {
		return err
	}
	if err := b.Connect(parentA, name); err != nil {
		return err
	}
	return b.Connect(parentB, name)
}

func MustRegisterZip2[A, B, O any](b *GraphBuilder, name string, combine func(A, B) (O, error), parentA, parentB string) {
	must(RegisterZip2(b, name, combine, parentA, parentB))
}

// RegisterZipN registers a k-input fan-in over a single element type,
// emitting a []T of the round's elements in input-port order. Parents may be
// given here or wired later with Connect.
func RegisterZipN[T any](b *GraphBuilder, name string, k int, parents ...string) error {
	if k < 2 {
		return &WiringError{Node: NodeID(name), Err: fmt.Errorf("zip needs at least 2 inputs, got %d", k)}
	}
	if len(parents) > k {
		return &WiringError{Node: NodeID(name), Err: fmt.Errorf("%w: %d parents for %d inputs", ErrNoFreePort, len(parents), k)}
	}
	err := b.addNode(name, fanPorts[T]("in", k), outPort[[]T]("out"), func() runtimeStage {
		return newZipStage(k, func(slots []any) (any, error) {
			round := make([]T, len(slots))
			for i, s := range slots {
				round[i] = s.(T)
			}
			return round, nil
		})
	})
	if err != nil {
		return err
	}
	for _, parent := range parents {
		if err := b.Connect(parent, name); err != nil {
			return err
		}
	}
	return nil
}

func MustRegisterZipN[T any](b *GraphBuilder, name string, k int, parents ...string) {
	must(RegisterZipN[T](b, name, k, parents...))
}

// RegisterBuffer registers a balancing buffer with the given capacity and
// backpressure overflow policy: when the queue is full, upstream demand is
// withheld until space frees. Capacity 0 is a pure passthrough.
func RegisterBuffer[T any](b *GraphBuilder, name string, capacity int, parent string) error {
	if capacity < 0 {
		return &WiringError{Node: NodeID(name), Err: fmt.Errorf("buffer capacity must be >= 0, got %d", capacity)}
	}
	err := b.addNode(name, inPort[T]("in"), outPort[T]("out"), func() runtimeStage {
		return &bufferStage{capacity: capacity}
	})
	if err != nil {
		return err
	}
	return b.Connect(parent, name)
}

func MustRegisterBuffer[T any](b *GraphBuilder, name string, capacity int, parent string) {
	must(RegisterBuffer[T](b, name, capacity, parent))
}

// RegisterSlidingWindow registers a count-based sliding window emitting the
// last size elements as a []T once primed, one window per element. The
// priming latency of size-1 elements is exactly the branch offset that
// PlanBuffers balances.
func RegisterSlidingWindow[T any](b *GraphBuilder, name string, size int, parent string) error {
	if size < 1 {
		return &WiringError{Node: NodeID(name), Err: fmt.Errorf("window size must be >= 1, got %d", size)}
	}
	err := b.addNode(name, inPort[T]("in"), outPort[[]T]("out"), func() runtimeStage {
		return &windowStage[T]{size: size}
	})
	if err != nil {
		return err
	}
	return b.Connect(parent, name)
}

func MustRegisterSlidingWindow[T any](b *GraphBuilder, name string, size int, parent string) {
	must(RegisterSlidingWindow[T](b, name, size, parent))
}

// ChannelSourceOption configures a channel source registration.
type ChannelSourceOption func(*channelSourceConfig)

type channelSourceConfig struct {
	slack int
}

// WithChannelSlack sets how many elements the source may hold past the
// demand its downstream signalled. The minimum (and default) is one, the
// element being moved from the channel into the graph.
func WithChannelSlack(n int) ChannelSourceOption {
	return func(c *channelSourceConfig) {
		if n > 0 {
			c.slack = n
		}
	}
}

// SinkOption configures a sink registration.
type SinkOption func(*sinkConfig)

type sinkConfig struct {
	prefetch int
}

// WithSinkPrefetch makes the sink request n extra elements of lookahead in
// addition to its base demand of one. The default is zero: a sink adds no
// slack to the graph unless asked to.
func WithSinkPrefetch(n int) SinkOption {
	return func(c *sinkConfig) {
		if n > 0 {
			c.prefetch = n
		}
	}
}
