package pullstream

// windowStage buffers incoming elements and emits the last size elements as
// a fresh slice, starting once size elements have been received and then
// once per element. The priming latency of size-1 elements makes a window
// branch consume ahead of what it produces, which is the canonical uneven
// branch in a fan-out/fan-in graph.
type windowStage[T any] struct {
	size int

	buf         []T
	received    int
	emitted     int
	credit      int
	outstanding int
}

func (s *windowStage[T]) Init(ctx *StageContext) error {
	return nil
}

func (s *windowStage[T]) OnDemand(ctx *StageContext, out int, n int) error {
	s.credit += n
	s.topUp(ctx)
	return nil
}

// topUp requests exactly the inputs required to satisfy the outstanding
// downstream credit: one per window, plus the size-1 priming elements.
func (s *windowStage[T]) topUp(ctx *StageContext) {
	need := s.emitted + s.credit + s.size - 1 - s.received - s.outstanding
	if need > 0 {
		s.outstanding += need
		ctx.Request(0, need)
	}
}

func (s *windowStage[T]) OnElement(ctx *StageContext, in int, el any) error {
	s.outstanding--
	s.received++
	s.buf = append(s.buf, el.(T))
	if len(s.buf) > s.size {
		s.buf = s.buf[1:]
	}
	if len(s.buf) == s.size && s.credit > 0 {
		s.credit--
		s.emitted++
		window := make([]T, s.size)
		copy(window, s.buf)
		ctx.Emit(0, window)
	}
	return nil
}

func (s *windowStage[T]) OnComplete(ctx *StageContext, in int) error {
	ctx.Complete(0)
	return nil
}

func (s *windowStage[T]) Close() error {
	s.buf = nil
	return nil
}
