package funnel

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"upsell-tracker/internal/commerce"
	"upsell-tracker/internal/database"
)

func openSQLite(t *testing.T) *database.SQLiteDriver {
	t.Helper()
	d := database.NewSQLiteDriver(nil)
	require.NoError(t, d.Connect(context.Background(), ":memory:"))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestCheckoutFunnelOnSQLite(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	db := openSQLite(t)
	w := &CheckoutFunnelTest{BaseProducts: 3}

	require.NoError(t, w.Setup(ctx, db, logger))
	result, err := w.Run(ctx, db, 4, 300*time.Millisecond, logger)
	require.NoError(t, err)

	assert.Positive(t, result.Operations)
	assert.Zero(t, result.Errors)
	assert.True(t, result.DataIntegrity)
	assert.Positive(t, result.Throughput)
	assert.GreaterOrEqual(t, result.P99Latency, result.P95Latency)

	var orders, linked int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&orders))
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM checkout_sessions WHERE order_id IS NOT NULL").Scan(&linked))
	assert.EqualValues(t, result.Operations, orders)
	assert.Equal(t, orders, linked)

	require.NoError(t, w.Teardown(ctx, db, logger))
	_, err = commerce.SchemaVersion(ctx, db)
	assert.Error(t, err, "teardown drops every table")
}

func TestCheckoutFunnelNeedsSQL(t *testing.T) {
	w := &CheckoutFunnelTest{}
	err := w.Setup(context.Background(), database.NewMongoDriver("", nil), nil)
	assert.ErrorContains(t, err, "relational")

	_, err = w.Run(context.Background(), openSQLite(t), 1, time.Millisecond, nil)
	assert.ErrorContains(t, err, "Setup")
}

func TestSessionChurnOnSQLite(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	db := openSQLite(t)
	w := &SessionChurnTest{ListLimit: 5}

	require.NoError(t, w.Setup(ctx, db, logger))
	result, err := w.Run(ctx, db, 3, 200*time.Millisecond, logger)
	require.NoError(t, err)
	assert.Positive(t, result.Operations)
	assert.Zero(t, result.Errors)
	assert.True(t, result.DataIntegrity)

	var remaining int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM checkout_sessions").Scan(&remaining))
	assert.Zero(t, remaining)

	require.NoError(t, w.Teardown(ctx, db, logger))
}

func TestSessionChurnOnMongo(t *testing.T) {
	uri := os.Getenv("COMMERCE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("COMMERCE_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	md := database.NewMongoDriver("commerce_churn_test", logger)
	require.NoError(t, md.Connect(ctx, uri))
	t.Cleanup(func() { _ = md.Close() })
	require.NoError(t, md.Reset(ctx))

	w := &SessionChurnTest{}
	require.NoError(t, w.Setup(ctx, md, logger))
	result, err := w.Run(ctx, md, 2, 200*time.Millisecond, logger)
	require.NoError(t, err)
	assert.True(t, result.DataIntegrity)
	require.NoError(t, w.Teardown(ctx, md, logger))
}

func TestDriveSummarizes(t *testing.T) {
	result := drive(context.Background(), 2, 50*time.Millisecond, nil, func(ctx context.Context, worker, iteration int) error {
		if iteration%2 == 1 {
			return assert.AnError
		}
		time.Sleep(time.Millisecond)
		return nil
	})
	assert.Positive(t, result.Operations)
	assert.Positive(t, result.Errors)
	assert.InDelta(t, 0.5, result.ErrorRate, 0.2)
	assert.GreaterOrEqual(t, result.AverageLatency, time.Millisecond)
}

func TestUpsellDashboardOnSQLite(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	db := openSQLite(t)
	w := &UpsellDashboardTest{Flows: 30}

	require.NoError(t, w.Setup(ctx, db, logger))

	var orders int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&orders))
	assert.Equal(t, 30, orders)

	result, err := w.Run(ctx, db, 3, 200*time.Millisecond, logger)
	require.NoError(t, err)
	assert.Positive(t, result.Operations)
	assert.Zero(t, result.Errors)
	assert.True(t, result.DataIntegrity)

	require.NoError(t, w.Teardown(ctx, db, logger))
}

func TestCatalogBrowseOnSQLite(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	db := openSQLite(t)
	w := &CatalogBrowseTest{BaseProducts: 7, PageSize: 3}

	_, err := w.Run(ctx, db, 1, time.Millisecond, logger)
	assert.ErrorContains(t, err, "Setup")

	require.NoError(t, w.Setup(ctx, db, logger))
	result, err := w.Run(ctx, db, 3, 200*time.Millisecond, logger)
	require.NoError(t, err)
	assert.Positive(t, result.Operations)
	assert.Zero(t, result.Errors)
	assert.True(t, result.DataIntegrity)

	_, err = db.ExecContext(ctx, "DELETE FROM product_accessory_map WHERE base_product_id = ?", w.funnel.bases[0].product.ProductID)
	require.NoError(t, err)
	intact, err := w.accessoriesResolve(ctx, db)
	require.NoError(t, err)
	assert.False(t, intact)

	require.NoError(t, w.Teardown(ctx, db, logger))
}
