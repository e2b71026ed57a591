package pullstream

import "errors"

var errNoOutput = errors.New("sink has no output ports")

// sinkStage terminates a stream: it issues initial demand, invokes the
// user callback per element and replenishes demand as it finishes each one.
type sinkStage[T any] struct {
	fn       func(T) error
	prefetch int
}

func (s *sinkStage[T]) Init(ctx *StageContext) error {
	ctx.Request(0, 1+s.prefetch)
	return nil
}

func (s *sinkStage[T]) OnDemand(ctx *StageContext, out int, n int) error {
	return errNoOutput
}

func (s *sinkStage[T]) OnElement(ctx *StageContext, in int, el any) error {
	if err := s.fn(el.(T)); err != nil {
		return err
	}
	ctx.Request(0, 1)
	return nil
}

func (s *sinkStage[T]) OnComplete(ctx *StageContext, in int) error {
	return nil
}

func (s *sinkStage[T]) Close() error {
	return nil
}
