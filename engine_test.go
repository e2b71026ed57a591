package pullstream

import (
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func collectSink[T any](b *GraphBuilder, name, parent string, into *[]T) {
	MustRegisterSink(b, name, func(v T) error {
		*into = append(*into, v)
		return nil
	}, parent)
}

func TestLinearPipeline(t *testing.T) {
	var got []int
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice([]int{1, 2, 3, 4, 5}))
	MustRegisterMap(b, "double", func(v int) (int, error) { return v * 2, nil }, "src")
	collectSink(b, "out", "double", &got)

	err := Run(b.MustBuild())
	assert.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6, 8, 10}, got)
}

func TestMapInverseRoundTrip(t *testing.T) {
	input := []int{7, -3, 0, 42, 19}
	var got []int
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice(input))
	MustRegisterMap(b, "enc", func(v int) (int, error) { return v*2 + 1, nil }, "src")
	MustRegisterMap(b, "dec", func(v int) (int, error) { return (v - 1) / 2, nil }, "enc")
	collectSink(b, "out", "dec", &got)

	assert.NoError(t, Run(b.MustBuild()))
	assert.Equal(t, input, got)
}

func TestStageErrorAbortsGraph(t *testing.T) {
	var got []int
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice([]int{1, 2, 3, 4}))
	MustRegisterMap(b, "explode", func(v int) (int, error) {
		if v == 3 {
			return 0, errors.New("boom")
		}
		return v, nil
	}, "src")
	collectSink(b, "out", "explode", &got)

	err := Run(b.MustBuild())
	assert.Error(t, err)

	var serr *StageError
	assert.True(t, errors.As(err, &serr))
	assert.Equal(t, NodeID("explode"), serr.Node)

	// No partial results after the failure.
	assert.Equal(t, []int{1, 2}, got)
}

func TestDropStage(t *testing.T) {
	var got []int
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice([]int{1, 2, 3, 4, 5, 6}))
	MustRegisterDrop[int](b, "skip", 4, "src")
	collectSink(b, "out", "skip", &got)

	assert.NoError(t, Run(b.MustBuild()))
	assert.Equal(t, []int{5, 6}, got)
}

func TestDropLargerThanInput(t *testing.T) {
	var got []int
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice([]int{1, 2}))
	MustRegisterDrop[int](b, "skip", 5, "src")
	collectSink(b, "out", "skip", &got)

	assert.NoError(t, Run(b.MustBuild()))
	assert.Equal(t, 0, len(got))
}

func TestZipUnequalSourcesCompletesEarly(t *testing.T) {
	var got [][]int
	b := NewGraphBuilder()
	MustRegisterSource(b, "short", FromSlice([]int{1, 2, 3}))
	MustRegisterSource(b, "long", FromSlice([]int{10, 20, 30, 40, 50}))
	MustRegisterZipN[int](b, "zip", 2, "short", "long")
	collectSink(b, "out", "zip", &got)

	assert.NoError(t, Run(b.MustBuild()))
	assert.Equal(t, [][]int{{1, 10}, {2, 20}, {3, 30}}, got)
}

func TestBroadcastToTwoSinks(t *testing.T) {
	var a, c []int
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice([]int{1, 2, 3}))
	MustRegisterBroadcast[int](b, "split", 2, "src")
	collectSink(b, "a", "split", &a)
	collectSink(b, "c", "split", &c)

	assert.NoError(t, Run(b.MustBuild()))
	assert.Equal(t, []int{1, 2, 3}, a)
	assert.Equal(t, []int{1, 2, 3}, c)
}

func TestBalancedFanOutFanIn(t *testing.T) {
	var got [][]int
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice([]int{1, 2, 3}))
	MustRegisterBroadcast[int](b, "split", 2, "src")
	MustRegisterMap(b, "same", func(v int) (int, error) { return v, nil }, "split")
	MustRegisterMap(b, "tens", func(v int) (int, error) { return v * 10, nil }, "split")
	MustRegisterZipN[int](b, "zip", 2, "same", "tens")
	collectSink(b, "out", "zip", &got)

	assert.NoError(t, Run(b.MustBuild()))
	assert.Equal(t, [][]int{{1, 10}, {2, 20}, {3, 30}}, got)
}

func TestChannelSource(t *testing.T) {
	ch := make(chan int)
	go func() {
		for i := 1; i <= 5; i++ {
			ch <- i
		}
		close(ch)
	}()

	var got []int
	b := NewGraphBuilder()
	MustRegisterChannelSource(b, "feed", ch)
	MustRegisterMap(b, "double", func(v int) (int, error) { return v * 2, nil }, "feed")
	collectSink(b, "out", "double", &got)

	assert.NoError(t, Run(b.MustBuild()))
	assert.Equal(t, []int{2, 4, 6, 8, 10}, got)
}

// wedgedChannelGraph wires ch into a fan-out whose balancing buffer is
// undersized, so the graph accepts one element and then no further demand
// ever reaches the source.
func wedgedChannelGraph(ch chan int, opts ...ChannelSourceOption) *Graph {
	b := NewGraphBuilder()
	MustRegisterChannelSource(b, "feed", ch, opts...)
	MustRegisterBroadcast[int](b, "split", 2, "feed")
	MustRegisterBuffer[int](b, "lag", 0, "split")
	MustRegisterDrop[int](b, "ahead", 3, "split")
	MustRegisterZip2(b, "pair", func(a, c int) (int, error) {
		return a - c, nil
	}, "lag", "ahead")
	MustRegisterSink(b, "out", func(int) error { return nil }, "pair")
	return b.MustBuild()
}

// countSends pushes onto ch until a send blocks, returning how many the
// graph accepted.
func countSends(ch chan int, max int) int {
	sent := 0
	for i := 1; i <= max; i++ {
		select {
		case ch <- i:
			sent++
		case <-time.After(250 * time.Millisecond):
			return sent
		}
	}
	return sent
}

func TestChannelSourceBackpressuresPastDemand(t *testing.T) {
	ch := make(chan int)
	h := Start(wedgedChannelGraph(ch))

	// One element enters the graph, one more is held as the source's
	// slack; the third send must block on the channel itself instead of
	// accumulating inside the engine.
	assert.Equal(t, 2, countSends(ch, 10))

	h.Cancel()
	assert.True(t, errors.Is(h.Wait(), ErrCancelled))
}

func TestChannelSourceSlackBoundsPending(t *testing.T) {
	ch := make(chan int)
	h := Start(wedgedChannelGraph(ch, WithChannelSlack(4)))

	// One element enters the graph, four fill the configured slack.
	assert.Equal(t, 5, countSends(ch, 20))

	h.Cancel()
	assert.True(t, errors.Is(h.Wait(), ErrCancelled))
}

func TestStepBudgetOnInfiniteSource(t *testing.T) {
	b := NewGraphBuilder()
	MustRegisterSource(b, "ones", Repeat(1))
	MustRegisterSink(b, "out", func(int) error { return nil }, "ones")

	err := Run(b.MustBuild(), WithMaxSteps(500))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrStepBudget))
}

func TestCancelInfiniteSource(t *testing.T) {
	ready := make(chan struct{})
	var h *Handle
	var outputs int

	b := NewGraphBuilder()
	MustRegisterSource(b, "ones", Repeat(1))
	MustRegisterMap(b, "same", func(v int) (int, error) { return v, nil }, "ones")
	MustRegisterSink(b, "out", func(int) error {
		outputs++
		if outputs == 5 {
			<-ready
			h.Cancel()
		}
		return nil
	}, "same")

	h = Start(b.MustBuild())
	close(ready)

	err := h.Wait()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))

	// Cancellation is observed before the next delivery, so exactly the
	// five outputs seen before Cancel were delivered.
	assert.Equal(t, 5, outputs)

	// Every stage reached a terminal state and was closed.
	for _, n := range h.eng.order {
		assert.NotEqual(t, nodeRunning, n.state)
		assert.True(t, n.closed)
	}
}

func TestSinkPrefetchStillOrdered(t *testing.T) {
	var got []int
	b := NewGraphBuilder()
	MustRegisterSource(b, "src", FromSlice([]int{1, 2, 3, 4, 5, 6, 7, 8}))
	MustRegisterSink(b, "out", func(v int) error {
		got = append(got, v)
		return nil
	}, "src", WithSinkPrefetch(3))

	assert.NoError(t, Run(b.MustBuild()))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, got)
}
