package commerce

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

// testSessionStore exercises the behaviour every SessionStore shares.
func testSessionStore(t *testing.T, store SessionStore) {
	ctx := context.Background()

	created, err := store.Create(ctx, models.CheckoutSession{ShopSessionID: "S1", CustomerID: strPtr("C1")})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := store.Get(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, *created, *got)

	_, err = store.Create(ctx, models.CheckoutSession{ShopSessionID: "S1"})
	assert.True(t, database.IsConflict(err), "duplicate: %v", err)

	_, err = store.Update(ctx, models.CheckoutSession{ShopSessionID: "missing"})
	assert.ErrorIs(t, err, database.ErrNotFound)

	updated, err := store.Update(ctx, models.CheckoutSession{ShopSessionID: "S1", UpdatedTs: "2031-01-01T00:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedTs, updated.CreatedTs)
	assert.Nil(t, updated.CustomerID)
	assert.Equal(t, "2031-01-01T00:00:00.000000Z", updated.UpdatedTs)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := store.Create(ctx, models.CheckoutSession{
			ShopSessionID: fmt.Sprintf("P%d", i),
			CreatedTs:     models.FormatTimestamp(base.Add(-time.Duration(i) * time.Hour)),
		})
		require.NoError(t, err)
	}
	page, err := store.List(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"P0", "P1"}, shopIDs(page))

	require.NoError(t, store.Delete(ctx, "S1"))
	require.NoError(t, store.Delete(ctx, "S1"))
	_, err = store.Get(ctx, "S1")
	assert.ErrorIs(t, err, database.ErrNotFound)

	tie := "2030-01-01T00:00:00Z"
	_, err = store.Create(ctx, models.CheckoutSession{ID: "zzz", ShopSessionID: "first", CreatedTs: tie})
	require.NoError(t, err)
	_, err = store.Create(ctx, models.CheckoutSession{ID: "aaa", ShopSessionID: "second", CreatedTs: tie})
	require.NoError(t, err)
	page, err = store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, shopIDs(page))
}

func TestSQLSessionStore(t *testing.T) {
	db := openSQLite(t)
	_, err := CreateCustomer(context.Background(), db, models.Customer{CustomerID: "C1"})
	require.NoError(t, err)

	testSessionStore(t, NewSQLSessionStore(db))
}

func TestMongoSessionStore(t *testing.T) {
	uri := os.Getenv("COMMERCE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("COMMERCE_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	md := database.NewMongoDriver("commerce_test", nil)
	require.NoError(t, md.Connect(ctx, uri))
	t.Cleanup(func() { _ = md.Close() })
	require.NoError(t, md.Reset(ctx))

	store := NewMongoSessionStore(md)
	require.NoError(t, store.EnsureIndexes(ctx))
	require.NoError(t, store.EnsureIndexes(ctx))

	testSessionStore(t, store)
}
