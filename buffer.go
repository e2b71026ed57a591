package pullstream

// bufferStage is the balancing buffer: a bounded FIFO whose overflow policy
// is backpressure. It eagerly requests enough upstream elements to fill its
// queue; when the queue is full and downstream holds no demand, it simply
// stops advertising demand, which propagates backpressure upstream
// transitively. Elements are never dropped and overflow never fails.
//
// Sizing is a composition-time responsibility: on the lower-offset branch
// of a fan-out/fan-in pair the capacity must cover the offset difference
// (see PlanBuffers). Undersizing does not corrupt results; it re-creates
// the stall the buffer exists to prevent.
type bufferStage struct {
	capacity int

	queue       []any
	open        int // downstream demand not yet satisfied
	outstanding int // upstream demand signalled, elements not yet received
	upDone      bool
	closed      bool
}

func (s *bufferStage) Init(ctx *StageContext) error {
	// Pre-fill: the buffer absorbs elements ahead of downstream demand.
	s.topUp(ctx)
	return nil
}

// topUp advertises exactly as much upstream demand as free capacity plus
// open downstream demand, so queued+outstanding never exceeds
// capacity+open.
func (s *bufferStage) topUp(ctx *StageContext) {
	if s.upDone {
		return
	}
	want := s.capacity - len(s.queue) - s.outstanding + s.open
	if want > 0 {
		s.outstanding += want
		ctx.Request(0, want)
	}
}

func (s *bufferStage) OnDemand(ctx *StageContext, out int, n int) error {
	s.open += n
	for s.open > 0 && len(s.queue) > 0 {
		ctx.Emit(0, s.queue[0])
		s.queue = s.queue[1:]
		s.open--
	}
	if s.upDone && len(s.queue) == 0 {
		if !s.closed {
			s.closed = true
			ctx.Complete(0)
		}
		return nil
	}
	s.topUp(ctx)
	return nil
}

func (s *bufferStage) OnElement(ctx *StageContext, in int, el any) error {
	s.outstanding--
	if s.open > 0 {
		s.open--
		ctx.Emit(0, el)
		return nil
	}
	if len(s.queue) >= s.capacity {
		// Cannot happen while topUp is the only demand issuer.
		return &portViolation{port: "in"}
	}
	s.queue = append(s.queue, el)
	return nil
}

func (s *bufferStage) OnComplete(ctx *StageContext, in int) error {
	s.upDone = true
	if len(s.queue) == 0 && !s.closed {
		s.closed = true
		ctx.Complete(0)
	}
	return nil
}

func (s *bufferStage) buffered() int {
	return len(s.queue)
}

func (s *bufferStage) Close() error {
	s.queue = nil
	return nil
}
