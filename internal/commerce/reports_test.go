package commerce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

func testConversionReport(t *testing.T, db database.SQLDriver) {
	ctx := context.Background()
	f := seedFunnel(t, db)

	accepted := offer(t, db, f, nil)
	_, err := RecordUpsellAddition(ctx, db, models.UpsellAddition{UpsellEventID: accepted.UpsellEventID, OrderID: f.order.OrderID, ProductID: f.accessory.ProductID, Revenue: money("12.50")})
	require.NoError(t, err)
	rejected := offer(t, db, f, nil)
	_, err = RecordUpsellRejection(ctx, db, models.UpsellRejection{UpsellEventID: rejected.UpsellEventID, ProductID: f.accessory.ProductID, Revenue: money("12.50")})
	require.NoError(t, err)
	offer(t, db, f, nil)

	_, err = CreateUpsellEvent(ctx, db, models.UpsellEvent{
		CheckoutSessionID: f.session.ShopSessionID,
		Placement:         "checkout_page",
		OfferedProductID:  f.accessory.ProductID,
		OfferedUnitPrice:  f.variant.Price,
		Decision:          models.DecisionPtr(models.DecisionIgnored),
	})
	require.NoError(t, err)

	report, err := UpsellConversionByPlacement(ctx, db, "")
	require.NoError(t, err)
	require.Len(t, report, 2)

	drawer := report[0]
	assert.Equal(t, "cart_drawer", drawer.Placement)
	assert.Equal(t, int64(3), drawer.Offered)
	assert.Equal(t, int64(1), drawer.Accepted)
	assert.Equal(t, int64(1), drawer.Rejected)
	assert.Equal(t, int64(0), drawer.Ignored)
	assert.Equal(t, int64(1), drawer.Undecided)
	assert.True(t, money("12.50").Equal(drawer.Revenue), "revenue %s", drawer.Revenue)
	assert.InDelta(t, 1.0/3.0, drawer.AcceptanceRate(), 1e-9)

	page := report[1]
	assert.Equal(t, "checkout_page", page.Placement)
	assert.Equal(t, int64(1), page.Offered)
	assert.Equal(t, int64(1), page.Ignored)
	assert.True(t, page.Revenue.IsZero())
	assert.Zero(t, PlacementConversion{}.AcceptanceRate())

	report, err = UpsellConversionByPlacement(ctx, db, "2999-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Empty(t, report)

	_, err = UpsellConversionByPlacement(ctx, db, "yesterday")
	assert.ErrorIs(t, err, models.ErrInvalid)
}

func testTopAcceptedProducts(t *testing.T, db database.SQLDriver) {
	ctx := context.Background()
	f := seedFunnel(t, db)

	belt, err := CreateProduct(ctx, db, models.Product{SKU: "BELT-1", Title: "Belt", IsAccessory: true, Active: true})
	require.NoError(t, err)

	add := func(productID int64) {
		e, err := CreateUpsellEvent(ctx, db, models.UpsellEvent{
			CheckoutSessionID: f.session.ShopSessionID,
			Placement:         "cart_drawer",
			OfferedProductID:  productID,
			OfferedUnitPrice:  money("9.00"),
		})
		require.NoError(t, err)
		_, err = RecordUpsellAddition(ctx, db, models.UpsellAddition{UpsellEventID: e.UpsellEventID, OrderID: f.order.OrderID, ProductID: productID, Revenue: money("9.00")})
		require.NoError(t, err)
	}
	add(belt.ProductID)
	add(f.accessory.ProductID)
	add(f.accessory.ProductID)

	top, err := TopAcceptedProducts(ctx, db, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []ProductCount{{f.accessory.ProductID, 2}, {belt.ProductID, 1}}, top)

	top, err = TopAcceptedProducts(ctx, db, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, []ProductCount{{f.accessory.ProductID, 2}}, top)

	top, err = TopAcceptedProducts(ctx, db, 1, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}
