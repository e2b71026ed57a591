package pullstream

// dropStage discards the first offset elements, issuing upstream demand for
// each, then passes through 1:1. Its branch offset (for PlanBuffers) equals
// the configured drop count.
type dropStage struct {
	offset int
	toDrop int
	primed bool
}

func (s *dropStage) Init(ctx *StageContext) error {
	return nil
}

func (s *dropStage) OnDemand(ctx *StageContext, out int, n int) error {
	req := n
	if !s.primed {
		// First demand also covers the elements about to be discarded.
		s.primed = true
		req += s.offset
	}
	ctx.Request(0, req)
	return nil
}

func (s *dropStage) OnElement(ctx *StageContext, in int, el any) error {
	if s.toDrop > 0 {
		s.toDrop--
		return nil
	}
	ctx.Emit(0, el)
	return nil
}

func (s *dropStage) OnComplete(ctx *StageContext, in int) error {
	ctx.Complete(0)
	return nil
}

func (s *dropStage) Close() error {
	return nil
}
