package pullstream

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
)

// Build validates the assembled graph and freezes it. Validation covers
// port connectivity (every declared port connected exactly once), the
// presence of at least one source and one sink, cycle detection, and
// orphaned nodes; all problems found are returned together. Connections are
// type-checked eagerly in Connect, so Build never starts a graph with
// mismatched ports.
func (b *GraphBuilder) Build() (*Graph, error) {
	var errs *multierror.Error

	for _, id := range b.nodeOrder {
		n := b.nodes[id]
		for i := b.inUsed[id]; i < len(n.ins); i++ {
			errs = multierror.Append(errs, &WiringError{Node: id, Port: n.ins[i].name, Err: ErrPortUnconnected})
		}
		for i := b.outUsed[id]; i < len(n.outs); i++ {
			errs = multierror.Append(errs, &WiringError{Node: id, Port: n.outs[i].name, Err: ErrPortUnconnected})
		}
	}

	var hasSource, hasSink bool
	for _, n := range b.nodes {
		if len(n.ins) == 0 {
			hasSource = true
		}
		if len(n.outs) == 0 {
			hasSink = true
		}
	}
	if len(b.nodes) > 0 && !hasSource {
		errs = multierror.Append(errs, ErrNoSource)
	}
	if len(b.nodes) > 0 && !hasSink {
		errs = multierror.Append(errs, ErrNoSink)
	}
	if len(b.nodes) == 0 {
		errs = multierror.Append(errs, ErrNoSource)
	}

	if err := b.detectCycles(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := b.validateNoOrphans(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	order, err := b.topologicalSort()
	if err != nil {
		return nil, err
	}

	nodes := make(map[NodeID]*graphNode, len(b.nodes))
	for id, n := range b.nodes {
		nodes[id] = n
	}
	return &Graph{
		nodes: nodes,
		order: order,
		conns: slices.Clone(b.conns),
	}, nil
}

func (b *GraphBuilder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

func (b *GraphBuilder) children(id NodeID) []NodeID {
	var res []NodeID
	for _, c := range b.conns {
		if c.from == id {
			res = append(res, c.to)
		}
	}
	return res
}

// detectCycles uses DFS to find cycles introduced by late Connect calls.
func (b *GraphBuilder) detectCycles() error {
	visited := make(map[NodeID]bool)
	recStack := make(map[NodeID]bool)

	var dfs func(NodeID, []NodeID) error
	dfs = func(id NodeID, path []NodeID) error {
		visited[id] = true
		recStack[id] = true
		path = append(path, id)

		for _, child := range b.children(id) {
			if !visited[child] {
				if err := dfs(child, path); err != nil {
					return err
				}
			} else if recStack[child] {
				return fmt.Errorf("cycle detected: %v", append(path, child))
			}
		}

		recStack[id] = false
		return nil
	}

	for _, id := range b.nodeOrder {
		if !visited[id] {
			if err := dfs(id, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateNoOrphans checks that all nodes are reachable from a source.
func (b *GraphBuilder) validateNoOrphans() error {
	reachable := make(map[NodeID]bool)

	var mark func(NodeID)
	mark = func(id NodeID) {
		if reachable[id] {
			return
		}
		reachable[id] = true
		for _, child := range b.children(id) {
			mark(child)
		}
	}

	for _, id := range b.nodeOrder {
		if len(b.nodes[id].ins) == 0 {
			mark(id)
		}
	}

	var orphans []NodeID
	for id := range b.nodes {
		if !reachable[id] {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) > 0 {
		slices.Sort(orphans) // deterministic error message
		return fmt.Errorf("orphaned nodes (unreachable from sources): %v", orphans)
	}
	return nil
}

// topologicalSort orders the nodes with Kahn's algorithm, breaking ties
// lexically so stage initialization order is deterministic.
func (b *GraphBuilder) topologicalSort() ([]NodeID, error) {
	inDegree := make(map[NodeID]int, len(b.nodes))
	for id := range b.nodes {
		inDegree[id] = 0
	}
	for _, c := range b.conns {
		inDegree[c.to]++
	}

	var queue []NodeID
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	slices.Sort(queue)

	var result []NodeID
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		children := b.children(id)
		slices.Sort(children)
		for _, child := range children {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
				slices.Sort(queue)
			}
		}
	}

	if len(result) != len(b.nodes) {
		return nil, fmt.Errorf("graph has cycles (topological sort failed)")
	}
	return result, nil
}
