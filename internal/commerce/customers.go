package commerce

import (
	"context"
	"fmt"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

func CreateCustomer(ctx context.Context, db database.SQLDriver, c models.Customer) (*models.Customer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.CreatedTs == nil {
		now := models.Now()
		c.CreatedTs = &now
	}
	_, err := db.ExecContext(ctx,
		"INSERT INTO customers (customer_id, email, created_ts) VALUES (?, ?, ?)",
		c.CustomerID, c.Email, c.CreatedTs)
	if err != nil {
		return nil, fmt.Errorf("create customer %q: %w", c.CustomerID, err)
	}
	return &c, nil
}

func GetCustomer(ctx context.Context, db database.SQLDriver, customerID string) (*models.Customer, error) {
	var c models.Customer
	err := db.QueryRowContext(ctx,
		"SELECT customer_id, email, created_ts FROM customers WHERE customer_id = ?", customerID).
		Scan(&c.CustomerID, &c.Email, &c.CreatedTs)
	if err != nil {
		return nil, wrapGet(err, "get customer", fmt.Sprintf("customer %q", customerID))
	}
	return &c, nil
}
