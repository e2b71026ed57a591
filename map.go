package pullstream

// mapStage applies a pure transformation 1:1. Demand passes through to the
// input unmodified; every element consumes exactly one unit of downstream
// demand.
type mapStage[I, O any] struct {
	fn func(I) (O, error)
}

func (s *mapStage[I, O]) Init(ctx *StageContext) error {
	return nil
}

func (s *mapStage[I, O]) OnDemand(ctx *StageContext, out int, n int) error {
	ctx.Request(0, n)
	return nil
}

func (s *mapStage[I, O]) OnElement(ctx *StageContext, in int, el any) error {
	v, err := s.fn(el.(I))
	if err != nil {
		return err
	}
	ctx.Emit(0, v)
	return nil
}

func (s *mapStage[I, O]) OnComplete(ctx *StageContext, in int) error {
	ctx.Complete(0)
	return nil
}

func (s *mapStage[I, O]) Close() error {
	return nil
}
