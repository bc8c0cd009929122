package commerce

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

const orderColumns = `order_id, customer_id, checkout_session_id, order_ts, currency,
	subtotal, shipping, discount_total, tax_total, total,
	has_upsell, upsell_revenue, upsell_count`

// CreateOrder inserts an order with zeroed upsell aggregates; they are only
// ever written by RecomputeOrderUpsell.
func CreateOrder(ctx context.Context, db database.SQLDriver, o models.Order) (*models.Order, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	ts, err := models.NormalizeTimestamp(o.OrderTs)
	if err != nil {
		return nil, err
	}
	o.OrderTs = ts
	o.HasUpsell, o.UpsellRevenue, o.UpsellCount = false, decimal.Zero, 0

	_, err = db.ExecContext(ctx,
		`INSERT INTO orders (order_id, customer_id, checkout_session_id, order_ts, currency,
			subtotal, shipping, discount_total, tax_total, total,
			has_upsell, upsell_revenue, upsell_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.CustomerID, o.CheckoutSessionID, o.OrderTs, o.Currency,
		o.Subtotal, o.Shipping, o.DiscountTotal, o.TaxTotal, o.Total,
		o.HasUpsell, o.UpsellRevenue, o.UpsellCount)
	if err != nil {
		return nil, fmt.Errorf("create order %d: %w", o.OrderID, err)
	}
	return &o, nil
}

func GetOrder(ctx context.Context, db database.SQLDriver, orderID int64) (*models.Order, error) {
	var o models.Order
	err := scanOrder(db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE order_id = ?", orderID), &o)
	if err != nil {
		return nil, wrapGet(err, "get order", fmt.Sprintf("order %d", orderID))
	}
	return &o, nil
}

// ListCustomerOrders returns a customer's orders, most recent first.
func ListCustomerOrders(ctx context.Context, db database.SQLDriver, customerID string, limit, offset int) ([]models.Order, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE customer_id = ? ORDER BY order_ts DESC, order_id DESC LIMIT ? OFFSET ?",
		customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders of customer %q: %w", customerID, err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("list orders of customer %q: %w", customerID, err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func scanOrder(row database.Row, o *models.Order) error {
	return row.Scan(&o.OrderID, &o.CustomerID, &o.CheckoutSessionID, &o.OrderTs, &o.Currency,
		&o.Subtotal, &o.Shipping, &o.DiscountTotal, &o.TaxTotal, &o.Total,
		&o.HasUpsell, &o.UpsellRevenue, &o.UpsellCount)
}

const orderItemColumns = `order_item_id, order_id, product_id, variant_id, sku, title, image_url,
	quantity, unit_price, line_total, is_upsell_item, upsell_event_id, added_ts`

// AddOrderItem appends a line item. Quantity defaults to 1 and a zero line
// total to unit price times quantity.
func AddOrderItem(ctx context.Context, db database.SQLDriver, item models.OrderItem) (*models.OrderItem, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if item.LineTotal.IsZero() {
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	}
	if err := stamp(&item.AddedTs); err != nil {
		return nil, err
	}

	id, err := insertID(ctx, db,
		`INSERT INTO order_items (order_id, product_id, variant_id, sku, title, image_url,
			quantity, unit_price, line_total, is_upsell_item, upsell_event_id, added_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"order_item_id",
		item.OrderID, item.ProductID, item.VariantID, item.SKU, item.Title, item.ImageURL,
		item.Quantity, item.UnitPrice, item.LineTotal, item.IsUpsellItem, item.UpsellEventID, item.AddedTs)
	if err != nil {
		return nil, fmt.Errorf("add item to order %d: %w", item.OrderID, err)
	}
	item.OrderItemID = id
	return &item, nil
}

func ListOrderItems(ctx context.Context, db database.SQLDriver, orderID int64) ([]models.OrderItem, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+orderItemColumns+" FROM order_items WHERE order_id = ? ORDER BY order_item_id", orderID)
	if err != nil {
		return nil, fmt.Errorf("list items of order %d: %w", orderID, err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var i models.OrderItem
		err := rows.Scan(&i.OrderItemID, &i.OrderID, &i.ProductID, &i.VariantID, &i.SKU, &i.Title, &i.ImageURL,
			&i.Quantity, &i.UnitPrice, &i.LineTotal, &i.IsUpsellItem, &i.UpsellEventID, &i.AddedTs)
		if err != nil {
			return nil, fmt.Errorf("list items of order %d: %w", orderID, err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// stamp fills an empty timestamp with now and normalizes a given one.
func stamp(ts *string) error {
	if *ts == "" {
		*ts = models.Now()
		return nil
	}
	normalized, err := models.NormalizeTimestamp(*ts)
	if err != nil {
		return err
	}
	*ts = normalized
	return nil
}
