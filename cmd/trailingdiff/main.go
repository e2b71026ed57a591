package main

import (
	"github.com/pullstream/pullstream"
	"github.com/pullstream/pullstream/pkg/log"
)

// Computes the trailing difference over a descending integer series: each
// element paired with its difference against the value seven positions
// later. The graph broadcasts the series into a buffered branch and a
// Drop(7) branch and zips them back together; the Buffer(7) is what keeps
// the uneven branches from deadlocking.
func main() {
	logger := log.New()

	series := make([]int, 51)
	for i := range series {
		series[i] = 100 - 2*i
	}

	b := pullstream.NewGraphBuilder()
	pullstream.MustRegisterSource(b, "series", pullstream.FromSlice(series))
	pullstream.MustRegisterTrailingDifference[int](b, "diff", 7, "series")
	pullstream.MustRegisterSink(b, "print", func(c pullstream.Change[int]) error {
		logger.Info().Int("value", c.Value).Int("delta", c.Delta).Msg("change")
		return nil
	}, "diff")

	if err := pullstream.Run(b.MustBuild()); err != nil {
		logger.Fatal().Err(err).Msg("run failed")
	}
}
