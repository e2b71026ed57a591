package pullstream

import (
	"reflect"
	"strconv"
)

// NodeID is a strongly-typed identifier for graph nodes.
type NodeID string

// portSpec declares one input or output port of a node: its name and the
// element type flowing through it. Types are captured by the generic
// Register functions and checked when ports are connected, so type mismatch
// is a build-time WiringError, never a runtime panic.
type portSpec struct {
	name string
	elem reflect.Type
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func inPort[T any](name string) []portSpec {
	return []portSpec{{name: name, elem: typeOf[T]()}}
}

func outPort[T any](name string) []portSpec {
	return []portSpec{{name: name, elem: typeOf[T]()}}
}

// fanPorts builds k same-typed ports named prefix0..prefix{k-1}.
func fanPorts[T any](prefix string, k int) []portSpec {
	ports := make([]portSpec, k)
	for i := range ports {
		ports[i] = portSpec{name: prefix + strconv.Itoa(i), elem: typeOf[T]()}
	}
	return ports
}

// graphNode is the build-time representation of a stage in the graph. The
// runtime stage is created from the Build closure when the engine starts, so
// the same builder registration never shares state with a running graph.
type graphNode struct {
	id    NodeID
	ins   []portSpec
	outs  []portSpec
	build func() runtimeStage
}

// connSpec is one validated outputPort -> inputPort connection.
type connSpec struct {
	from     NodeID
	fromPort int
	to       NodeID
	toPort   int
}

// Graph is an immutable-after-assembly set of stages and port-to-port
// connections, produced by GraphBuilder.Build. Stage state is materialized
// per run; a Graph whose sources are single-use (e.g. FromSlice closures)
// must be rebuilt to be run again.
type Graph struct {
	nodes map[NodeID]*graphNode
	order []NodeID // deterministic topological order
	conns []connSpec
}
