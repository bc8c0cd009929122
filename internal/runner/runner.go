package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"upsell-tracker/internal/database"
)

// Run executes the workload's measured phase. Setup and teardown are the
// caller's job; Benchmark does the whole lifecycle.
func Run(ctx context.Context, db database.DatabaseDriver, workload database.Workload, concurrency int, duration time.Duration, logger *zap.Logger) (*database.Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("workload started",
		zap.String("db", db.Name()),
		zap.Int("concurrency", concurrency),
		zap.Duration("duration", duration))

	result, err := workload.Run(ctx, db, concurrency, duration, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("workload finished",
		zap.Int64("operations", result.Operations),
		zap.Int64("errors", result.Errors),
		zap.Float64("throughput", result.Throughput),
		zap.Bool("data_integrity", result.DataIntegrity))
	return result, nil
}

// Benchmark resets the database to a clean state, sets the workload up,
// runs it and tears it down. A teardown failure is logged, not returned,
// so a finished run still reports its result.
func Benchmark(ctx context.Context, db database.DatabaseDriver, workload database.Workload, concurrency int, duration time.Duration, logger *zap.Logger) (*database.Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset database: %w", err)
	}
	if err := workload.Setup(ctx, db, logger); err != nil {
		return nil, fmt.Errorf("setup workload: %w", err)
	}
	defer func() {
		if err := workload.Teardown(context.Background(), db, logger); err != nil {
			logger.Error("teardown failed", zap.Error(err))
		}
	}()

	return Run(ctx, db, workload, concurrency, duration, logger)
}
