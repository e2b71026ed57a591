package pullstream

// zipStage is the dual of broadcast: k inputs, one output. It requests one
// element per input per round and emits a combined element only once every
// input has delivered, consuming one unit of downstream demand. When any
// input completes with an empty slot, no further round can complete and the
// output is completed early.
type zipStage struct {
	k       int
	combine func([]any) (any, error)

	slots  []any
	filled []bool
	asked  []bool
	inDone []bool
	credit int
	closed bool
}

func newZipStage(k int, combine func([]any) (any, error)) *zipStage {
	return &zipStage{
		k:       k,
		combine: combine,
		slots:   make([]any, k),
		filled:  make([]bool, k),
		asked:   make([]bool, k),
		inDone:  make([]bool, k),
	}
}

func (s *zipStage) Init(ctx *StageContext) error {
	return nil
}

func (s *zipStage) OnDemand(ctx *StageContext, out int, n int) error {
	s.credit += n
	if err := s.tryEmit(ctx); err != nil {
		return err
	}
	s.pull(ctx)
	return nil
}

func (s *zipStage) OnElement(ctx *StageContext, in int, el any) error {
	s.asked[in] = false
	s.filled[in] = true
	s.slots[in] = el
	if err := s.tryEmit(ctx); err != nil {
		return err
	}
	s.pull(ctx)
	return nil
}

func (s *zipStage) OnComplete(ctx *StageContext, in int) error {
	s.inDone[in] = true
	s.maybeClose(ctx)
	return nil
}

// tryEmit completes as many rounds as buffered elements and downstream
// credit allow (at most one per element arrival in practice).
func (s *zipStage) tryEmit(ctx *StageContext) error {
	for s.credit > 0 && !s.closed && s.allFilled() {
		out, err := s.combine(s.slots)
		if err != nil {
			return err
		}
		ctx.Emit(0, out)
		s.credit--
		for i := range s.filled {
			s.filled[i] = false
			s.slots[i] = nil
		}
		s.maybeClose(ctx)
	}
	return nil
}

// pull requests the pending element of the current round from every input
// that has not delivered yet, but only while downstream demand exists.
func (s *zipStage) pull(ctx *StageContext) {
	if s.closed || s.credit == 0 {
		return
	}
	for i := 0; i < s.k; i++ {
		if !s.filled[i] && !s.asked[i] && !s.inDone[i] {
			s.asked[i] = true
			ctx.Request(i, 1)
		}
	}
}

func (s *zipStage) allFilled() bool {
	for _, f := range s.filled {
		if !f {
			return false
		}
	}
	return true
}

func (s *zipStage) maybeClose(ctx *StageContext) {
	if s.closed {
		return
	}
	for i := 0; i < s.k; i++ {
		if s.inDone[i] && !s.filled[i] {
			s.closed = true
			ctx.Complete(0)
			return
		}
	}
}

func (s *zipStage) Close() error {
	return nil
}
