package pullstream

import "errors"

// SourceFunc produces the next element of a stream, returning false when
// the stream is exhausted. A SourceFunc is single-use: it is consumed by
// one graph run.
type SourceFunc[T any] func() (T, bool)

// FromSlice returns a SourceFunc yielding the elements of xs in order.
func FromSlice[T any](xs []T) SourceFunc[T] {
	i := 0
	return func() (T, bool) {
		if i >= len(xs) {
			var zero T
			return zero, false
		}
		v := xs[i]
		i++
		return v, true
	}
}

// Repeat returns an infinite SourceFunc yielding v forever. Graphs fed by
// Repeat only terminate through cancellation or a step budget.
func Repeat[T any](v T) SourceFunc[T] {
	return func() (T, bool) {
		return v, true
	}
}

// Sequence returns a SourceFunc yielding count values starting at from,
// advancing by step.
func Sequence[T Number](from, step T, count int) SourceFunc[T] {
	i := 0
	next := from
	return func() (T, bool) {
		if i >= count {
			var zero T
			return zero, false
		}
		v := next
		next += step
		i++
		return v, true
	}
}

var errNoInput = errors.New("source has no input ports")

// sourceStage emits one element per unit of received demand, immediately,
// and completes its output on exhaustion.
type sourceStage[T any] struct {
	next SourceFunc[T]
	done bool
}

func (s *sourceStage[T]) Init(ctx *StageContext) error {
	return nil
}

func (s *sourceStage[T]) OnDemand(ctx *StageContext, out int, n int) error {
	if s.done {
		return nil
	}
	for ; n > 0; n-- {
		v, ok := s.next()
		if !ok {
			s.done = true
			ctx.Complete(0)
			return nil
		}
		ctx.Emit(0, v)
	}
	return nil
}

func (s *sourceStage[T]) OnElement(ctx *StageContext, in int, el any) error {
	return errNoInput
}

func (s *sourceStage[T]) OnComplete(ctx *StageContext, in int) error {
	return errNoInput
}

func (s *sourceStage[T]) Close() error {
	return nil
}

// channelSource emits elements arriving asynchronously on a Go channel. The
// pump goroutine must acquire a slot before each read, and a slot is only
// returned when a pending element leaves against downstream demand, so the
// source never holds more than slack elements past the demand it was
// granted. Once the slots are exhausted backpressure falls through to the
// channel itself: sends block until the graph consumes.
type channelSource[T any] struct {
	ch    <-chan T
	slack int

	slots   chan struct{}
	pending []any
	credit  int
	eof     bool
	done    bool
}

func (s *channelSource[T]) Init(ctx *StageContext) error {
	s.slots = make(chan struct{}, s.slack)
	for i := 0; i < s.slack; i++ {
		s.slots <- struct{}{}
	}
	ctx.eng.addPump(ctx.node, func(stop <-chan struct{}, inject func(el any, eof bool) bool) {
		for {
			select {
			case <-s.slots:
			case <-stop:
				return
			}
			select {
			case v, ok := <-s.ch:
				if !ok {
					inject(nil, true)
					return
				}
				if !inject(v, false) {
					return
				}
			case <-stop:
				return
			}
		}
	})
	return nil
}

func (s *channelSource[T]) OnAvail(ctx *StageContext, el any, eof bool) error {
	if eof {
		s.eof = true
	} else {
		s.pending = append(s.pending, el)
	}
	s.drain(ctx)
	return nil
}

func (s *channelSource[T]) OnDemand(ctx *StageContext, out int, n int) error {
	s.credit += n
	s.drain(ctx)
	return nil
}

func (s *channelSource[T]) drain(ctx *StageContext) {
	for s.credit > 0 && len(s.pending) > 0 {
		ctx.Emit(0, s.pending[0])
		s.pending = s.pending[1:]
		s.credit--
		s.slots <- struct{}{}
	}
	if s.eof && !s.done && len(s.pending) == 0 {
		s.done = true
		ctx.Complete(0)
	}
}

func (s *channelSource[T]) OnElement(ctx *StageContext, in int, el any) error {
	return errNoInput
}

func (s *channelSource[T]) OnComplete(ctx *StageContext, in int) error {
	return errNoInput
}

func (s *channelSource[T]) Close() error {
	return nil
}
