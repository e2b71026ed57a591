package pullstream

import (
	"errors"
	"strconv"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestRegisterSource(t *testing.T) {
	t.Run("valid source registration", func(t *testing.T) {
		b := NewGraphBuilder()
		err := RegisterSource(b, "src", FromSlice([]int{1, 2, 3}))
		assert.NoError(t, err)

		node, exists := b.nodes[NodeID("src")]
		assert.True(t, exists)
		assert.Equal(t, 0, len(node.ins))
		assert.Equal(t, 1, len(node.outs))
	})

	t.Run("duplicate node name", func(t *testing.T) {
		b := NewGraphBuilder()
		assert.NoError(t, RegisterSource(b, "src", FromSlice([]int{1})))
		err := RegisterSource(b, "src", FromSlice([]int{2}))
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrNodeAlreadyExists))
	})
}

func TestConnect(t *testing.T) {
	t.Run("unknown parent", func(t *testing.T) {
		b := NewGraphBuilder()
		err := RegisterSink(b, "out", func(int) error { return nil }, "nope")
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrNodeNotFound))
	})

	t.Run("port type mismatch", func(t *testing.T) {
		b := NewGraphBuilder()
		MustRegisterSource(b, "src", FromSlice([]int{1}))
		MustRegisterMap(b, "str", func(v int) (string, error) {
			return strconv.Itoa(v), nil
		}, "src")

		err := RegisterSink(b, "out", func(int) error { return nil }, "str")
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrPortTypeMismatch))

		var werr *WiringError
		assert.True(t, errors.As(err, &werr))
		assert.Equal(t, NodeID("str"), werr.Node)
	})

	t.Run("duplicate connection exhausts ports", func(t *testing.T) {
		b := NewGraphBuilder()
		MustRegisterSource(b, "src", FromSlice([]int{1}))
		MustRegisterSink(b, "a", func(int) error { return nil }, "src")

		// src has a single output port; a second child is a duplicate.
		err := RegisterSink[int](b, "b", func(int) error { return nil }, "src")
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoFreePort))
	})

	t.Run("broadcast allocates ports in declaration order", func(t *testing.T) {
		b := NewGraphBuilder()
		MustRegisterSource(b, "src", FromSlice([]int{1}))
		MustRegisterBroadcast[int](b, "split", 2, "src")
		MustRegisterSink(b, "a", func(int) error { return nil }, "split")
		MustRegisterSink(b, "b", func(int) error { return nil }, "split")

		assert.Equal(t, 2, b.outUsed[NodeID("split")])
		_, err := b.Build()
		assert.NoError(t, err)
	})
}

func TestBuilderParameterValidation(t *testing.T) {
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice([]int{1}))

	assert.Error(t, RegisterBroadcast[int](b, "bc", 1, "src"))
	assert.Error(t, RegisterZipN[int](b, "zip", 1))
	assert.Error(t, RegisterDrop[int](b, "drop", -1, "src"))
	assert.Error(t, RegisterBuffer[int](b, "buf", -1, "src"))
	assert.Error(t, RegisterSlidingWindow[int](b, "win", 0, "src"))
}
