package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/workloads/funnel"
)

func openSQLite(t *testing.T) *database.SQLiteDriver {
	t.Helper()
	d := database.NewSQLiteDriver(nil)
	require.NoError(t, d.Connect(context.Background(), ":memory:"))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestBenchmarkCheckoutFunnel(t *testing.T) {
	db := openSQLite(t)
	result, err := Benchmark(context.Background(), db, &funnel.CheckoutFunnelTest{BaseProducts: 2}, 2, 200*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Positive(t, result.Operations)
	assert.True(t, result.DataIntegrity)

	var tables int
	require.NoError(t, db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'").Scan(&tables))
	assert.Zero(t, tables, "teardown resets the database")
}

type stubWorkload struct {
	setupErr, runErr error
	tornDown         bool
}

func (s *stubWorkload) Setup(context.Context, database.DatabaseDriver, *zap.Logger) error {
	return s.setupErr
}

func (s *stubWorkload) Run(context.Context, database.DatabaseDriver, int, time.Duration, *zap.Logger) (*database.Result, error) {
	if s.runErr != nil {
		return nil, s.runErr
	}
	return &database.Result{Operations: 3, DataIntegrity: true}, nil
}

func (s *stubWorkload) Teardown(context.Context, database.DatabaseDriver, *zap.Logger) error {
	s.tornDown = true
	return nil
}

func TestBenchmarkPropagatesFailures(t *testing.T) {
	db := openSQLite(t)
	boom := errors.New("boom")

	w := &stubWorkload{setupErr: boom}
	_, err := Benchmark(context.Background(), db, w, 1, time.Millisecond, nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, w.tornDown)

	w = &stubWorkload{runErr: boom}
	_, err = Benchmark(context.Background(), db, w, 1, time.Millisecond, nil)
	assert.ErrorIs(t, err, boom)
	assert.True(t, w.tornDown)

	w = &stubWorkload{}
	result, err := Run(context.Background(), db, w, 1, time.Millisecond, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.Operations)
}
