package models

import "github.com/shopspring/decimal"

// Decision is the shopper's response to an upsell offer. A nil *Decision
// means no response has been recorded yet.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
	DecisionIgnored  Decision = "ignored"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionAccepted, DecisionRejected, DecisionIgnored:
		return true
	}
	return false
}

func DecisionPtr(d Decision) *Decision {
	return &d
}

type UpsellEvent struct {
	UpsellEventID     int64           `json:"upsellEventId"`
	OrderID           *int64          `json:"orderId,omitempty"`
	CheckoutSessionID string          `json:"checkoutSessionId"`
	CustomerID        *string         `json:"customerId,omitempty"`
	UpsellVersion     *string         `json:"upsellVersion,omitempty"`
	Strategy          *string         `json:"strategy,omitempty"`
	OfferedTs         string          `json:"offeredTs"`
	Placement         string          `json:"placement"`
	TriggerProductID  *int64          `json:"triggerProductId,omitempty"`
	OfferedProductID  int64           `json:"offeredProductId"`
	OfferedVariantID  *int64          `json:"offeredVariantId,omitempty"`
	OfferedSKU        *string         `json:"offeredSku,omitempty"`
	OfferedTitle      *string         `json:"offeredTitle,omitempty"`
	OfferedUnitPrice  decimal.Decimal `json:"offeredUnitPrice"`
	Decision          *Decision       `json:"decision"`
	DecisionTs        *string         `json:"decisionTs,omitempty"`
}

func (e *UpsellEvent) Validate() error {
	if err := requireText("checkoutSessionId", e.CheckoutSessionID); err != nil {
		return err
	}
	if err := optionalID("orderId", e.OrderID); err != nil {
		return err
	}
	if err := optionalText("customerId", e.CustomerID); err != nil {
		return err
	}
	if err := requireText("placement", e.Placement); err != nil {
		return err
	}
	if err := positiveID("offeredProductId", e.OfferedProductID); err != nil {
		return err
	}
	if err := optionalID("triggerProductId", e.TriggerProductID); err != nil {
		return err
	}
	if err := optionalID("offeredVariantId", e.OfferedVariantID); err != nil {
		return err
	}
	if e.OfferedUnitPrice.IsNegative() {
		return invalidf("offeredUnitPrice must not be negative, got %s", e.OfferedUnitPrice)
	}
	if e.Decision != nil && !e.Decision.Valid() {
		return invalidf("decision must be one of accepted, rejected, ignored or null, got %q", *e.Decision)
	}
	if e.OfferedTs != "" {
		if err := requireTimestamp("offeredTs", e.OfferedTs); err != nil {
			return err
		}
	}
	return optionalTimestamp("decisionTs", e.DecisionTs)
}

type UpsellAddition struct {
	UpsellAdditionID int64           `json:"upsellAdditionId"`
	UpsellEventID    int64           `json:"upsellEventId"`
	OrderID          int64           `json:"orderId"`
	ProductID        int64           `json:"productId"`
	VariantID        *int64          `json:"variantId,omitempty"`
	SKU              *string         `json:"sku,omitempty"`
	ImageURL         *string         `json:"imageUrl,omitempty"`
	Quantity         int             `json:"quantity"`
	Revenue          decimal.Decimal `json:"revenue"`
	AddedTs          string          `json:"addedTs"`
}

func (a *UpsellAddition) Validate() error {
	if err := positiveID("upsellEventId", a.UpsellEventID); err != nil {
		return err
	}
	if err := positiveID("orderId", a.OrderID); err != nil {
		return err
	}
	if err := positiveID("productId", a.ProductID); err != nil {
		return err
	}
	if err := optionalID("variantId", a.VariantID); err != nil {
		return err
	}
	if a.Quantity < 0 {
		return invalidf("quantity must not be negative, got %d", a.Quantity)
	}
	if a.Revenue.IsNegative() {
		return invalidf("revenue must not be negative, got %s", a.Revenue)
	}
	if a.AddedTs != "" {
		return requireTimestamp("addedTs", a.AddedTs)
	}
	return nil
}

type UpsellRejection struct {
	UpsellRejectionID int64           `json:"upsellRejectionId"`
	UpsellEventID     int64           `json:"upsellEventId"`
	OrderID           *int64          `json:"orderId,omitempty"`
	ProductID         int64           `json:"productId"`
	VariantID         *int64          `json:"variantId,omitempty"`
	SKU               *string         `json:"sku,omitempty"`
	ImageURL          *string         `json:"imageUrl,omitempty"`
	Quantity          int             `json:"quantity"`
	Revenue           decimal.Decimal `json:"revenue"`
	RejectedTs        string          `json:"rejectedTs"`
}

func (r *UpsellRejection) Validate() error {
	if err := positiveID("upsellEventId", r.UpsellEventID); err != nil {
		return err
	}
	if err := optionalID("orderId", r.OrderID); err != nil {
		return err
	}
	if err := positiveID("productId", r.ProductID); err != nil {
		return err
	}
	if err := optionalID("variantId", r.VariantID); err != nil {
		return err
	}
	if r.Quantity < 0 {
		return invalidf("quantity must not be negative, got %d", r.Quantity)
	}
	if r.RejectedTs != "" {
		return requireTimestamp("rejectedTs", r.RejectedTs)
	}
	return nil
}

type UpsellView struct {
	UpsellViewID  int64   `json:"upsellViewId"`
	UpsellEventID int64   `json:"upsellEventId"`
	OrderID       *int64  `json:"orderId,omitempty"`
	ProductID     int64   `json:"productId"`
	VariantID     *int64  `json:"variantId,omitempty"`
	SKU           *string `json:"sku,omitempty"`
	ImageURL      *string `json:"imageUrl,omitempty"`
	ViewedTs      string  `json:"viewedTs"`
}

func (v *UpsellView) Validate() error {
	if err := positiveID("upsellEventId", v.UpsellEventID); err != nil {
		return err
	}
	if err := optionalID("orderId", v.OrderID); err != nil {
		return err
	}
	if err := positiveID("productId", v.ProductID); err != nil {
		return err
	}
	if err := optionalID("variantId", v.VariantID); err != nil {
		return err
	}
	if v.ViewedTs != "" {
		return requireTimestamp("viewedTs", v.ViewedTs)
	}
	return nil
}
