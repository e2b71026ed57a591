package pullstream

import (
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestBuildValidation(t *testing.T) {
	t.Run("empty builder", func(t *testing.T) {
		_, err := NewGraphBuilder().Build()
		assert.Error(t, err)
	})

	t.Run("unconnected output port", func(t *testing.T) {
		b := NewGraphBuilder()
		MustRegisterSource(b, "src", FromSlice([]int{1}))
		MustRegisterMap(b, "dangling", func(v int) (int, error) { return v, nil }, "src")

		_, err := b.Build()
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrPortUnconnected))
		assert.True(t, errors.Is(err, ErrNoSink))
	})

	t.Run("unconnected fan-in port", func(t *testing.T) {
		b := NewGraphBuilder()
		MustRegisterSource(b, "src", FromSlice([]int{1}))
		MustRegisterZipN[int](b, "zip", 2, "src") // second input never wired
		MustRegisterSink(b, "out", func([]int) error { return nil }, "zip")

		_, err := b.Build()
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrPortUnconnected))

		var werr *WiringError
		assert.True(t, errors.As(err, &werr))
		assert.Equal(t, NodeID("zip"), werr.Node)
		assert.Equal(t, "in1", werr.Port)
	})

	t.Run("cycle detected", func(t *testing.T) {
		b := NewGraphBuilder()
		MustRegisterSource(b, "src", FromSlice([]int{1}))
		MustRegisterZipN[int](b, "zip", 2, "src")
		MustRegisterMap(b, "back", func(w []int) (int, error) { return w[0], nil }, "zip")
		// back feeds the zip's second input: back -> zip -> back.
		assert.NoError(t, b.Connect("back", "zip"))

		_, err := b.Build()
		assert.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "cycle"))
	})

	t.Run("valid linear graph builds", func(t *testing.T) {
		b := NewGraphBuilder()
		MustRegisterSource(b, "src", FromSlice([]int{1, 2}))
		MustRegisterMap(b, "double", func(v int) (int, error) { return v * 2, nil }, "src")
		MustRegisterSink(b, "out", func(int) error { return nil }, "double")

		g, err := b.Build()
		assert.NoError(t, err)
		assert.Equal(t, []NodeID{"src", "double", "out"}, g.order)
		assert.Equal(t, 2, len(g.conns))
	})
}
