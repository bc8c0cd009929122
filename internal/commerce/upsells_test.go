package commerce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

func testUpsellDecisions(t *testing.T, db database.SQLDriver) {
	ctx := context.Background()
	f := seedFunnel(t, db)

	for _, d := range []*models.Decision{
		nil,
		models.DecisionPtr(models.DecisionAccepted),
		models.DecisionPtr(models.DecisionRejected),
		models.DecisionPtr(models.DecisionIgnored),
	} {
		e := offer(t, db, f, d)
		got, err := GetUpsellEvent(ctx, db, e.UpsellEventID)
		require.NoError(t, err)
		if d == nil {
			assert.Nil(t, got.Decision)
			assert.Nil(t, got.DecisionTs)
			continue
		}
		require.NotNil(t, got.Decision)
		assert.Equal(t, *d, *got.Decision)
		assert.NotNil(t, got.DecisionTs)
	}

	_, err := CreateUpsellEvent(ctx, db, models.UpsellEvent{
		CheckoutSessionID: "S1",
		Placement:         "cart_drawer",
		OfferedProductID:  f.accessory.ProductID,
		Decision:          models.DecisionPtr("maybe"),
	})
	assert.ErrorIs(t, err, models.ErrInvalid)

	// the check constraint holds even when validation is bypassed
	_, err = db.ExecContext(ctx,
		`INSERT INTO upsell_events (checkout_session_id, offered_ts, placement, offered_product_id, offered_unit_price, decision)
		VALUES (?, ?, ?, ?, ?, ?)`,
		"S1", models.Now(), "cart_drawer", f.accessory.ProductID, money("1.00"), "maybe")
	var ce *database.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, database.ConstraintCheck, ce.Kind)

	_, err = CreateUpsellEvent(ctx, db, models.UpsellEvent{
		CheckoutSessionID: "no-such-session",
		Placement:         "cart_drawer",
		OfferedProductID:  f.accessory.ProductID,
	})
	assert.ErrorIs(t, err, database.ErrConstraintViolation)

	events, err := ListSessionUpsellEvents(ctx, db, "S1")
	require.NoError(t, err)
	assert.Len(t, events, 4)

	e := offer(t, db, f, nil)
	require.NoError(t, DecideUpsellEvent(ctx, db, e.UpsellEventID, models.DecisionIgnored, ""))
	got, err := GetUpsellEvent(ctx, db, e.UpsellEventID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionIgnored, *got.Decision)

	assert.ErrorIs(t, DecideUpsellEvent(ctx, db, e.UpsellEventID, "maybe", ""), models.ErrInvalid)
	assert.ErrorIs(t, DecideUpsellEvent(ctx, db, e.UpsellEventID+100, models.DecisionRejected, ""), database.ErrNotFound)
}

func testOrderItems(t *testing.T, db database.SQLDriver) {
	ctx := context.Background()
	f := seedFunnel(t, db)

	item, err := AddOrderItem(ctx, db, models.OrderItem{
		OrderID:   f.order.OrderID,
		ProductID: f.base.ProductID,
		Quantity:  2,
		UnitPrice: money("12.50"),
	})
	require.NoError(t, err)
	assert.Nil(t, item.VariantID)
	assert.True(t, money("25.00").Equal(item.LineTotal))

	_, err = AddOrderItem(ctx, db, models.OrderItem{
		OrderID:   f.order.OrderID,
		ProductID: f.accessory.ProductID + 100,
		UnitPrice: money("1.00"),
	})
	var ce *database.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, database.ConstraintForeignKey, ce.Kind)

	_, err = AddOrderItem(ctx, db, models.OrderItem{OrderID: f.order.OrderID, ProductID: f.accessory.ProductID, IsUpsellItem: true})
	assert.ErrorIs(t, err, models.ErrInvalid)

	e := offer(t, db, f, nil)
	_, err = AddOrderItem(ctx, db, models.OrderItem{
		OrderID:       f.order.OrderID,
		ProductID:     f.accessory.ProductID,
		VariantID:     int64Ptr(f.variant.VariantID),
		UnitPrice:     f.variant.Price,
		IsUpsellItem:  true,
		UpsellEventID: int64Ptr(e.UpsellEventID),
	})
	require.NoError(t, err)

	items, err := ListOrderItems(ctx, db, f.order.OrderID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[1].Quantity)
	assert.True(t, items[1].IsUpsellItem)
	assert.Equal(t, e.UpsellEventID, *items[1].UpsellEventID)

	orders, err := ListCustomerOrders(ctx, db, "C1", 0, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "2024-05-01T10:00:00.000000Z", orders[0].OrderTs)

	_, err = GetOrder(ctx, db, 42)
	assert.ErrorIs(t, err, database.ErrNotFound)

	customer, err := GetCustomer(ctx, db, "C1")
	require.NoError(t, err)
	assert.Equal(t, "c1@example.com", *customer.Email)
	assert.NotNil(t, customer.CreatedTs)
	_, err = GetCustomer(ctx, db, "C9")
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = CreateCustomer(ctx, db, models.Customer{CustomerID: "C1"})
	assert.True(t, database.IsConflict(err))
}

func testUpsellOutcomes(t *testing.T, db database.SQLDriver) {
	ctx := context.Background()
	f := seedFunnel(t, db)

	accepted := offer(t, db, f, nil)
	addition, err := RecordUpsellAddition(ctx, db, models.UpsellAddition{
		UpsellEventID: accepted.UpsellEventID,
		OrderID:       f.order.OrderID,
		ProductID:     f.accessory.ProductID,
		VariantID:     int64Ptr(f.variant.VariantID),
		Revenue:       money("12.50"),
	})
	require.NoError(t, err)
	assert.Positive(t, addition.UpsellAdditionID)
	assert.Equal(t, 1, addition.Quantity)

	event, err := GetUpsellEvent(ctx, db, accepted.UpsellEventID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccepted, *event.Decision)
	assert.Equal(t, addition.AddedTs, *event.DecisionTs)
	assert.Equal(t, f.order.OrderID, *event.OrderID)

	order, err := GetOrder(ctx, db, f.order.OrderID)
	require.NoError(t, err)
	assert.True(t, order.HasUpsell)
	assert.Equal(t, 1, order.UpsellCount)
	assert.True(t, money("12.50").Equal(order.UpsellRevenue), "revenue %s", order.UpsellRevenue)

	_, err = RecordUpsellRejection(ctx, db, models.UpsellRejection{UpsellEventID: accepted.UpsellEventID, ProductID: f.accessory.ProductID, Revenue: money("12.50")})
	var ce *database.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, OutcomeConstraint, ce.Constraint)
	assert.True(t, database.IsConflict(err))

	_, err = RecordUpsellAddition(ctx, db, models.UpsellAddition{UpsellEventID: accepted.UpsellEventID, OrderID: f.order.OrderID, ProductID: f.accessory.ProductID, Revenue: money("12.50")})
	assert.True(t, database.IsConflict(err))

	order, err = GetOrder(ctx, db, f.order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 1, order.UpsellCount, "failed outcome must not touch aggregates")

	rejected := offer(t, db, f, nil)
	_, err = RecordUpsellRejection(ctx, db, models.UpsellRejection{UpsellEventID: rejected.UpsellEventID, OrderID: int64Ptr(f.order.OrderID), ProductID: f.accessory.ProductID, Revenue: money("12.50")})
	require.NoError(t, err)
	event, err = GetUpsellEvent(ctx, db, rejected.UpsellEventID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionRejected, *event.Decision)

	viewed := offer(t, db, f, nil)
	view, err := RecordUpsellView(ctx, db, models.UpsellView{UpsellEventID: viewed.UpsellEventID, ProductID: f.accessory.ProductID})
	require.NoError(t, err)
	assert.NotEmpty(t, view.ViewedTs)
	event, err = GetUpsellEvent(ctx, db, viewed.UpsellEventID)
	require.NoError(t, err)
	assert.Nil(t, event.Decision)

	_, err = RecordUpsellView(ctx, db, models.UpsellView{UpsellEventID: viewed.UpsellEventID, ProductID: f.accessory.ProductID})
	assert.True(t, database.IsConflict(err))

	_, err = RecordUpsellView(ctx, db, models.UpsellView{UpsellEventID: viewed.UpsellEventID + 100, ProductID: f.accessory.ProductID})
	assert.ErrorIs(t, err, database.ErrNotFound)

	// decisions must agree with a recorded addition or rejection
	for _, d := range []models.Decision{models.DecisionIgnored, models.DecisionRejected} {
		err = DecideUpsellEvent(ctx, db, accepted.UpsellEventID, d, "")
		require.ErrorAs(t, err, &ce, d)
		assert.Equal(t, database.ConstraintCheck, ce.Kind)
		assert.Equal(t, DecisionConstraint, ce.Constraint)
	}
	assert.ErrorIs(t, DecideUpsellEvent(ctx, db, rejected.UpsellEventID, models.DecisionAccepted, ""), database.ErrConstraintViolation)
	require.NoError(t, DecideUpsellEvent(ctx, db, accepted.UpsellEventID, models.DecisionAccepted, "2024-05-01T10:05:00Z"))
	require.NoError(t, DecideUpsellEvent(ctx, db, viewed.UpsellEventID, models.DecisionIgnored, ""))

	event, err = GetUpsellEvent(ctx, db, accepted.UpsellEventID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccepted, *event.Decision)
	assert.Equal(t, "2024-05-01T10:05:00.000000Z", *event.DecisionTs)

	order, err = GetOrder(ctx, db, f.order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 1, order.UpsellCount)
}

func testUpsellAggregates(t *testing.T, db database.SQLDriver) {
	ctx := context.Background()
	f := seedFunnel(t, db)

	for _, revenue := range []string{"10.10", "0.20", "5.00"} {
		e := offer(t, db, f, nil)
		_, err := RecordUpsellAddition(ctx, db, models.UpsellAddition{
			UpsellEventID: e.UpsellEventID,
			OrderID:       f.order.OrderID,
			ProductID:     f.accessory.ProductID,
			Revenue:       money(revenue),
		})
		require.NoError(t, err)
	}

	stored, expected, err := CheckOrderUpsellConsistency(ctx, db, f.order.OrderID)
	require.NoError(t, err)
	assert.True(t, stored.Equal(expected), "stored %+v expected %+v", stored, expected)
	assert.True(t, money("15.30").Equal(stored.UpsellRevenue), "revenue %s", stored.UpsellRevenue)
	assert.Equal(t, 3, stored.UpsellCount)

	plain, err := CreateOrder(ctx, db, models.Order{OrderID: 1002, OrderTs: "2024-05-02T10:00:00Z", Currency: "USD"})
	require.NoError(t, err)

	inconsistent, err := FindInconsistentOrders(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, inconsistent)

	_, err = db.ExecContext(ctx, "UPDATE orders SET upsell_count = ? WHERE order_id = ?", 7, f.order.OrderID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "UPDATE orders SET has_upsell = ? WHERE order_id = ?", true, plain.OrderID)
	require.NoError(t, err)

	inconsistent, err = FindInconsistentOrders(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.order.OrderID, plain.OrderID}, inconsistent)

	for _, id := range inconsistent {
		_, err := RecomputeOrderUpsell(ctx, db, id)
		require.NoError(t, err)
	}
	inconsistent, err = FindInconsistentOrders(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, inconsistent)

	_, err = RecomputeOrderUpsell(ctx, db, 99)
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, _, err = CheckOrderUpsellConsistency(ctx, db, 99)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
