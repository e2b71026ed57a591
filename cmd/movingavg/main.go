package main

import (
	"log/slog"
	"os"

	"github.com/pullstream/pullstream"
	"github.com/pullstream/pullstream/pkg/log"
)

// Joins a value series with its own 3-element moving average. The window
// branch consumes two elements before emitting its first average, so the
// plain branch carries a Buffer(2) to balance the fan-out.
func main() {
	logger := log.New()
	engineLog := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	values := []float64{4, 8, 6, 10, 2, 12, 8, 6}

	b := pullstream.NewGraphBuilder()
	pullstream.MustRegisterSource(b, "values", pullstream.FromSlice(values))
	pullstream.MustRegisterBroadcast[float64](b, "split", 2, "values")
	pullstream.MustRegisterBuffer[float64](b, "lag", 2, "split")
	pullstream.MustRegisterMovingAverage[float64](b, "avg", 3, "split")
	pullstream.MustRegisterZip2(b, "join", func(v, avg float64) (pullstream.Change[float64], error) {
		return pullstream.Change[float64]{Value: v, Delta: v - avg}, nil
	}, "lag", "avg")
	pullstream.MustRegisterSink(b, "print", func(c pullstream.Change[float64]) error {
		logger.Info().Float64("value", c.Value).Float64("vs_avg", c.Delta).Msg("sample")
		return nil
	}, "join")

	if err := pullstream.Run(b.MustBuild(), pullstream.WithLogger(engineLog)); err != nil {
		logger.Fatal().Err(err).Msg("run failed")
	}
}
