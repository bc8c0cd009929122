package models

// CheckoutSession is a shopper's in-progress purchase flow. ShopSessionID is
// the external identifier; ID is the internal primary key.
type CheckoutSession struct {
	ID            string  `json:"id" bson:"_id"`
	ShopSessionID string  `json:"shopSessionId" bson:"shop_session_id"`
	CustomerID    *string `json:"customerId" bson:"customer_id"`
	OrderID       *int64  `json:"orderId" bson:"order_id"`
	CreatedTs     string  `json:"createdTs" bson:"created_ts"`
	UpdatedTs     string  `json:"updatedTs" bson:"updated_ts"`
}

// Validate checks the record as a caller supplies it. Empty ID and
// timestamps are allowed because the store fills them in.
func (s *CheckoutSession) Validate() error {
	if err := requireText("shopSessionId", s.ShopSessionID); err != nil {
		return err
	}
	if err := optionalText("customerId", s.CustomerID); err != nil {
		return err
	}
	if err := optionalID("orderId", s.OrderID); err != nil {
		return err
	}
	if s.CreatedTs != "" {
		if err := requireTimestamp("createdTs", s.CreatedTs); err != nil {
			return err
		}
	}
	if s.UpdatedTs != "" {
		if err := requireTimestamp("updatedTs", s.UpdatedTs); err != nil {
			return err
		}
	}
	return nil
}
