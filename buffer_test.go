package pullstream

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestBufferPassesThroughInOrder(t *testing.T) {
	var got []int
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice([]int{1, 2, 3, 4, 5}))
	MustRegisterBuffer[int](b, "buf", 3, "src")
	collectSink(b, "out", "buf", &got)

	assert.NoError(t, Run(b.MustBuild()))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestBufferZeroCapacityIsPassthrough(t *testing.T) {
	var got []int
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice([]int{1, 2, 3}))
	MustRegisterBuffer[int](b, "buf", 0, "src")
	collectSink(b, "out", "buf", &got)

	assert.NoError(t, Run(b.MustBuild()))
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestBufferDrainsAfterUpstreamCompletes(t *testing.T) {
	// Capacity exceeds input length: the buffer absorbs everything up
	// front and must still drain fully against downstream demand.
	var got []int
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice([]int{1, 2, 3}))
	MustRegisterBuffer[int](b, "buf", 10, "src")
	collectSink(b, "out", "buf", &got)

	assert.NoError(t, Run(b.MustBuild()))
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestBufferSmallerThanInput(t *testing.T) {
	var got []int
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice([]int{1, 2, 3, 4, 5, 6}))
	MustRegisterBuffer[int](b, "buf", 2, "src")
	collectSink(b, "out", "buf", &got)

	assert.NoError(t, Run(b.MustBuild()))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, got)
}
