package database

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Workload interface {
	Setup(ctx context.Context, db DatabaseDriver, logger *zap.Logger) error
	Run(ctx context.Context, db DatabaseDriver, concurrency int, duration time.Duration, logger *zap.Logger) (*Result, error)
	Teardown(ctx context.Context, db DatabaseDriver, logger *zap.Logger) error
}

type Result struct {
	Operations     int64
	Errors         int64
	Throughput     float64
	P95Latency     time.Duration
	P99Latency     time.Duration
	AverageLatency time.Duration
	ErrorRate      float64
	TotalTime      time.Duration
	DataIntegrity  bool
}

type Row interface {
	Scan(dest ...interface{}) error
}

type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close()
	Err() error
}

type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
}

// Querier runs statements written with '?' placeholders. Drivers rebind
// them for their engine and route them through the transaction carried by
// ctx, if any.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (ExecResult, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) Row
}

type DatabaseDriver interface {
	Name() string
	Connect(ctx context.Context, dsn string) error
	Close() error
	Reset(ctx context.Context) error
	// ExecuteTx runs txFunc inside a transaction. The context handed to
	// txFunc carries the transaction; a nested call joins it.
	ExecuteTx(ctx context.Context, txFunc func(ctx context.Context) error) error
}

// SQLDriver is a relational store handle. Query functions in this module
// take one explicitly instead of reaching for a shared global.
type SQLDriver interface {
	DatabaseDriver
	Querier
	Dialect() Dialect
}

type txKey struct{}

func withTx(ctx context.Context, tx interface{}) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFrom(ctx context.Context) interface{} {
	return ctx.Value(txKey{})
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
