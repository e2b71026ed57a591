package pullstream

import (
	"golang.org/x/exp/constraints"
)

// Number covers the element types the numeric combinators operate on.
type Number interface {
	constraints.Integer | constraints.Float
}

// Change pairs an element with its difference against the element offset
// positions later in the stream.
type Change[T Number] struct {
	Value T
	Delta T
}

// PlanBuffers implements the balancing rule for a fan-out/fan-in pair:
// given the offset of every branch (the number of elements the branch
// consumes before it can emit one), it returns the buffer capacity each
// branch needs immediately after the fan-out so the fan-out's
// all-outputs-ready rule can always be satisfied. The highest-offset
// branch needs none; every other branch needs max(offsets) minus its own.
func PlanBuffers(offsets []int) []int {
	max := 0
	for _, o := range offsets {
		if o > max {
			max = o
		}
	}
	caps := make([]int, len(offsets))
	for i, o := range offsets {
		caps[i] = max - o
	}
	return caps
}

// RegisterTrailingDifference splices a trailing-difference subgraph under
// name: the stream is broadcast into a buffered branch and a Drop(offset)
// branch, and zipped back into Change values pairing each element with its
// difference against the element offset positions later. The terminal node
// carries the composite's name, so downstream stages attach to it as to
// any other parent. For an input of length N it emits N-offset changes.
func RegisterTrailingDifference[T Number](b *GraphBuilder, name string, offset int, parent string) error {
	split := name + ".split"
	lag := name + ".lag"
	ahead := name + ".ahead"

	if err := RegisterBroadcast[T](b, split, 2, parent); err != nil {
		return err
	}
	caps := PlanBuffers([]int{0, offset})
	if err := RegisterBuffer[T](b, lag, caps[0], split); err != nil {
		return err
	}
	if err := RegisterDrop[T](b, ahead, offset, split); err != nil {
		return err
	}
	return RegisterZip2(b, name, func(lagged, fwd T) (Change[T], error) {
		return Change[T]{Value: lagged, Delta: lagged - fwd}, nil
	}, lag, ahead)
}

func MustRegisterTrailingDifference[T Number](b *GraphBuilder, name string, offset int, parent string) {
	must(RegisterTrailingDifference[T](b, name, offset, parent))
}

// RegisterMovingAverage splices a sliding-window mean under name: windows
// of the given size, one float64 average per element once primed. The
// branch offset of the composite is size-1.
func RegisterMovingAverage[T Number](b *GraphBuilder, name string, size int, parent string) error {
	win := name + ".window"
	if err := RegisterSlidingWindow[T](b, win, size, parent); err != nil {
		return err
	}
	return RegisterMap(b, name, func(w []T) (float64, error) {
		var sum T
		for _, v := range w {
			sum += v
		}
		return float64(sum) / float64(len(w)), nil
	}, win)
}

func MustRegisterMovingAverage[T Number](b *GraphBuilder, name string, size int, parent string) {
	must(RegisterMovingAverage[T](b, name, size, parent))
}
