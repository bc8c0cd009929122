package models

import "github.com/shopspring/decimal"

type Order struct {
	OrderID           int64           `json:"orderId"`
	CustomerID        *string         `json:"customerId,omitempty"`
	CheckoutSessionID *string         `json:"checkoutSessionId,omitempty"`
	OrderTs           string          `json:"orderTs"`
	Currency          string          `json:"currency"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Shipping          decimal.Decimal `json:"shipping"`
	DiscountTotal     decimal.Decimal `json:"discountTotal"`
	TaxTotal          decimal.Decimal `json:"taxTotal"`
	Total             decimal.Decimal `json:"total"`

	// Derived from upsell_additions; written by RecomputeOrderUpsell only.
	HasUpsell     bool            `json:"hasUpsell"`
	UpsellRevenue decimal.Decimal `json:"upsellRevenue"`
	UpsellCount   int             `json:"upsellCount"`
}

func (o *Order) Validate() error {
	if err := positiveID("orderId", o.OrderID); err != nil {
		return err
	}
	if err := optionalText("customerId", o.CustomerID); err != nil {
		return err
	}
	if err := optionalText("checkoutSessionId", o.CheckoutSessionID); err != nil {
		return err
	}
	if err := requireTimestamp("orderTs", o.OrderTs); err != nil {
		return err
	}
	if len(o.Currency) != 3 {
		return invalidf("currency must be a 3-letter code, got %q", o.Currency)
	}
	for name, amount := range map[string]decimal.Decimal{
		"subtotal":      o.Subtotal,
		"shipping":      o.Shipping,
		"discountTotal": o.DiscountTotal,
		"taxTotal":      o.TaxTotal,
		"total":         o.Total,
	} {
		if amount.IsNegative() {
			return invalidf("%s must not be negative, got %s", name, amount)
		}
	}
	return nil
}

type OrderItem struct {
	OrderItemID   int64           `json:"orderItemId"`
	OrderID       int64           `json:"orderId"`
	ProductID     int64           `json:"productId"`
	VariantID     *int64          `json:"variantId,omitempty"`
	SKU           *string         `json:"sku,omitempty"`
	Title         *string         `json:"title,omitempty"`
	ImageURL      *string         `json:"imageUrl,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	LineTotal     decimal.Decimal `json:"lineTotal"`
	IsUpsellItem  bool            `json:"isUpsellItem"`
	UpsellEventID *int64          `json:"upsellEventId,omitempty"`
	AddedTs       string          `json:"addedTs"`
}

func (i *OrderItem) Validate() error {
	if err := positiveID("orderId", i.OrderID); err != nil {
		return err
	}
	if err := positiveID("productId", i.ProductID); err != nil {
		return err
	}
	if err := optionalID("variantId", i.VariantID); err != nil {
		return err
	}
	if err := optionalID("upsellEventId", i.UpsellEventID); err != nil {
		return err
	}
	if i.Quantity < 0 {
		return invalidf("quantity must not be negative, got %d", i.Quantity)
	}
	if i.UnitPrice.IsNegative() || i.LineTotal.IsNegative() {
		return invalidf("prices must not be negative")
	}
	if i.IsUpsellItem && i.UpsellEventID == nil {
		return invalidf("upsell items must reference an upsell event")
	}
	if i.AddedTs != "" {
		return requireTimestamp("addedTs", i.AddedTs)
	}
	return nil
}

// OrderUpsellSummary holds the aggregate upsell columns of an order.
type OrderUpsellSummary struct {
	OrderID       int64           `json:"orderId"`
	HasUpsell     bool            `json:"hasUpsell"`
	UpsellRevenue decimal.Decimal `json:"upsellRevenue"`
	UpsellCount   int             `json:"upsellCount"`
}

func (s OrderUpsellSummary) Equal(other OrderUpsellSummary) bool {
	return s.OrderID == other.OrderID &&
		s.HasUpsell == other.HasUpsell &&
		s.UpsellCount == other.UpsellCount &&
		s.UpsellRevenue.Equal(other.UpsellRevenue)
}
