package pullstream

// broadcastStage fans one input out to k outputs. It requests an element
// from its input only when every live output currently holds at least one
// unit of demand, and emits the element on all of them simultaneously,
// consuming one unit from each. This all-outputs-ready rule is what makes
// uneven downstream branches deadlock; the fix belongs to composition
// (balancing buffers), not to this stage.
type broadcastStage struct {
	k        int
	awaiting bool // an input element was requested and not yet received
}

func (s *broadcastStage) Init(ctx *StageContext) error {
	return nil
}

func (s *broadcastStage) OnDemand(ctx *StageContext, out int, n int) error {
	s.maybePull(ctx)
	return nil
}

func (s *broadcastStage) maybePull(ctx *StageContext) {
	if s.awaiting {
		return
	}
	live := 0
	for i := 0; i < s.k; i++ {
		if ctx.Closed(i) {
			continue
		}
		if ctx.Demand(i) == 0 {
			return
		}
		live++
	}
	if live == 0 {
		return
	}
	s.awaiting = true
	ctx.Request(0, 1)
}

func (s *broadcastStage) OnElement(ctx *StageContext, in int, el any) error {
	s.awaiting = false
	for i := 0; i < s.k; i++ {
		if ctx.Closed(i) {
			continue
		}
		ctx.Emit(i, el)
	}
	s.maybePull(ctx)
	return nil
}

func (s *broadcastStage) OnComplete(ctx *StageContext, in int) error {
	for i := 0; i < s.k; i++ {
		ctx.Complete(i)
	}
	return nil
}

func (s *broadcastStage) OnCancel(ctx *StageContext, out int) error {
	// One branch went away; the remaining ones may satisfy the
	// all-outputs-ready rule now.
	s.maybePull(ctx)
	return nil
}

func (s *broadcastStage) Close() error {
	return nil
}
