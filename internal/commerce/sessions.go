package commerce

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 500
)

const checkoutSessionColumns = "checkout_session_id, shop_session_id, customer_id, order_id, created_ts, updated_ts"

// ListCheckoutSessions returns sessions newest first. Sessions created in the
// same instant come back in reverse insertion order, tracked by the
// store-assigned insert_seq column.
func ListCheckoutSessions(ctx context.Context, db database.SQLDriver, limit, offset int) ([]models.CheckoutSession, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := db.QueryContext(ctx,
		"SELECT "+checkoutSessionColumns+" FROM checkout_sessions ORDER BY created_ts DESC, insert_seq DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list checkout sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.CheckoutSession, 0, limit)
	for rows.Next() {
		var s models.CheckoutSession
		if err := scanCheckoutSession(rows, &s); err != nil {
			return nil, fmt.Errorf("list checkout sessions: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkout sessions: %w", err)
	}
	return sessions, nil
}

// GetCheckoutSession looks a session up by its external shop session id.
// Absence is reported as database.ErrNotFound.
func GetCheckoutSession(ctx context.Context, db database.SQLDriver, shopSessionID string) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	err := scanCheckoutSession(db.QueryRowContext(ctx,
		"SELECT "+checkoutSessionColumns+" FROM checkout_sessions WHERE shop_session_id = ? LIMIT 1",
		shopSessionID), &s)
	if err != nil {
		return nil, wrapGet(err, "get checkout session", fmt.Sprintf("checkout session %q", shopSessionID))
	}
	return &s, nil
}

// CreateCheckoutSession inserts s and returns the stored row. The internal
// id and the timestamps are filled in when the caller leaves them empty.
// A duplicate shop session id fails with a uniqueness ConstraintError.
func CreateCheckoutSession(ctx context.Context, db database.SQLDriver, s models.CheckoutSession) (*models.CheckoutSession, error) {
	if err := PrepareNewSession(&s); err != nil {
		return nil, err
	}

	_, err := db.ExecContext(ctx,
		"INSERT INTO checkout_sessions ("+checkoutSessionColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		s.ID, s.ShopSessionID, s.CustomerID, s.OrderID, s.CreatedTs, s.UpdatedTs)
	if err != nil {
		return nil, fmt.Errorf("create checkout session %q: %w", s.ShopSessionID, err)
	}
	return &s, nil
}

// UpdateCheckoutSession replaces the mutable fields (customer, order,
// updated timestamp) of the session with s.ShopSessionID. The internal id
// and created timestamp are never changed.
func UpdateCheckoutSession(ctx context.Context, db database.SQLDriver, s models.CheckoutSession) (*models.CheckoutSession, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := stamp(&s.UpdatedTs); err != nil {
		return nil, err
	}

	var updated *models.CheckoutSession
	err := db.ExecuteTx(ctx, func(ctx context.Context) error {
		res, err := db.ExecContext(ctx,
			"UPDATE checkout_sessions SET customer_id = ?, order_id = ?, updated_ts = ? WHERE shop_session_id = ?",
			s.CustomerID, s.OrderID, s.UpdatedTs, s.ShopSessionID)
		if err != nil {
			return fmt.Errorf("update checkout session %q: %w", s.ShopSessionID, err)
		}
		if res.RowsAffected == 0 {
			return notFound("checkout session %q not found", s.ShopSessionID)
		}
		updated, err = GetCheckoutSession(ctx, db, s.ShopSessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteCheckoutSession removes the session if it exists. Deleting an absent
// session is not an error.
func DeleteCheckoutSession(ctx context.Context, db database.SQLDriver, shopSessionID string) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM checkout_sessions WHERE shop_session_id = ?", shopSessionID); err != nil {
		return fmt.Errorf("delete checkout session %q: %w", shopSessionID, err)
	}
	return nil
}

// LinkSessionOrder records the order a session turned into.
func LinkSessionOrder(ctx context.Context, db database.SQLDriver, shopSessionID string, orderID int64) error {
	res, err := db.ExecContext(ctx,
		"UPDATE checkout_sessions SET order_id = ?, updated_ts = ? WHERE shop_session_id = ?",
		orderID, models.Now(), shopSessionID)
	if err != nil {
		return fmt.Errorf("link session %q to order %d: %w", shopSessionID, orderID, err)
	}
	if res.RowsAffected == 0 {
		return notFound("checkout session %q not found", shopSessionID)
	}
	return nil
}

// PrepareNewSession validates s and fills server-assigned defaults. Shared
// by every SessionStore so all backends store the same shape.
func PrepareNewSession(s *models.CheckoutSession) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate checkout session id: %w", err)
		}
		s.ID = id.String()
	}
	if err := stamp(&s.CreatedTs); err != nil {
		return err
	}
	if s.UpdatedTs == "" {
		s.UpdatedTs = s.CreatedTs
		return nil
	}
	return stamp(&s.UpdatedTs)
}

func scanCheckoutSession(row database.Row, s *models.CheckoutSession) error {
	return row.Scan(&s.ID, &s.ShopSessionID, &s.CustomerID, &s.OrderID, &s.CreatedTs, &s.UpdatedTs)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
