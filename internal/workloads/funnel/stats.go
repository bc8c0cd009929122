package funnel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"

	"upsell-tracker/internal/database"
)

// Latencies are recorded in microseconds, up to 10 seconds with 3
// significant figures.
func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(1, 10000000, 3)
}

// drive runs op from concurrency workers until duration elapses or ctx is
// done, and summarizes what happened. Each worker owns its histogram; they
// are merged once all workers stop.
func drive(ctx context.Context, concurrency int, duration time.Duration, logger *zap.Logger, op func(ctx context.Context, worker int, iteration int) error) *database.Result {
	if concurrency < 1 {
		concurrency = 1
	}
	logger = nopIfNil(logger)
	var (
		wg         sync.WaitGroup
		operations atomic.Int64
		failures   atomic.Int64
	)
	histograms := make([]*hdrhistogram.Histogram, concurrency)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		histograms[w] = newHistogram()
		wg.Add(1)
		go func(worker int, histogram *hdrhistogram.Histogram) {
			defer wg.Done()
			for i := 0; time.Since(start) < duration && ctx.Err() == nil; i++ {
				opStart := time.Now()
				if err := op(ctx, worker, i); err != nil {
					failures.Add(1)
					logger.Debug("operation failed", zap.Int("worker", worker), zap.Error(err))
					continue
				}
				operations.Add(1)
				_ = histogram.RecordValue(time.Since(opStart).Microseconds())
			}
		}(w, histograms[w])
	}
	wg.Wait()

	total := newHistogram()
	for _, h := range histograms {
		total.Merge(h)
	}

	result := &database.Result{
		Operations: operations.Load(),
		Errors:     failures.Load(),
		TotalTime:  time.Since(start),
	}
	if attempts := result.Operations + result.Errors; attempts > 0 {
		result.ErrorRate = float64(result.Errors) / float64(attempts)
	}
	result.Throughput = float64(result.Operations) / result.TotalTime.Seconds()
	result.AverageLatency = time.Duration(total.Mean()) * time.Microsecond
	result.P95Latency = time.Duration(total.ValueAtQuantile(95)) * time.Microsecond
	result.P99Latency = time.Duration(total.ValueAtQuantile(99)) * time.Microsecond
	return result
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
