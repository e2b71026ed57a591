package pullstream

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestSlidingWindow(t *testing.T) {
	t.Run("emits one window per element once primed", func(t *testing.T) {
		var got [][]int
		b := NewGraphBuilder()
		MustRegisterSource(b, "src", FromSlice([]int{1, 2, 3, 4, 5}))
		MustRegisterSlidingWindow[int](b, "win", 3, "src")
		collectSink(b, "out", "win", &got)

		assert.NoError(t, Run(b.MustBuild()))
		assert.Equal(t, [][]int{{1, 2, 3}, {2, 3, 4}, {3, 4, 5}}, got)
	})

	t.Run("size one is a passthrough of singleton windows", func(t *testing.T) {
		var got [][]int
		b := NewGraphBuilder()
		MustRegisterSource(b, "src", FromSlice([]int{7, 8}))
		MustRegisterSlidingWindow[int](b, "win", 1, "src")
		collectSink(b, "out", "win", &got)

		assert.NoError(t, Run(b.MustBuild()))
		assert.Equal(t, [][]int{{7}, {8}}, got)
	})

	t.Run("input shorter than window emits nothing", func(t *testing.T) {
		var got [][]int
		b := NewGraphBuilder()
		MustRegisterSource(b, "src", FromSlice([]int{1, 2}))
		MustRegisterSlidingWindow[int](b, "win", 5, "src")
		collectSink(b, "out", "win", &got)

		assert.NoError(t, Run(b.MustBuild()))
		assert.Equal(t, 0, len(got))
	})

	t.Run("windows are independent copies", func(t *testing.T) {
		var got [][]int
		b := NewGraphBuilder()
		MustRegisterSource(b, "src", FromSlice([]int{1, 2, 3, 4}))
		MustRegisterSlidingWindow[int](b, "win", 2, "src")
		collectSink(b, "out", "win", &got)

		assert.NoError(t, Run(b.MustBuild()))
		got[0][0] = 99
		assert.Equal(t, []int{2, 3}, got[1])
	})

	t.Run("moving average over windows", func(t *testing.T) {
		var got []float64
		b := NewGraphBuilder()
		MustRegisterSource(b, "src", FromSlice([]float64{1, 2, 3, 4, 5, 6}))
		MustRegisterMovingAverage[float64](b, "avg", 3, "src")
		collectSink(b, "out", "avg", &got)

		assert.NoError(t, Run(b.MustBuild()))
		assert.Equal(t, []float64{2, 3, 4, 5}, got)
	})
}
