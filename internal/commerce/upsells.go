package commerce

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

// OutcomeConstraint names the writer-enforced rule that an upsell event
// receives at most one addition, rejection or view.
const OutcomeConstraint = "upsell_event_outcome"

// DecisionConstraint names the rule that an event's decision agrees with
// its recorded addition or rejection.
const DecisionConstraint = "upsell_event_decision_outcome"

const upsellEventColumns = `upsell_event_id, order_id, checkout_session_id, customer_id, upsell_version, strategy,
	offered_ts, placement, trigger_product_id, offered_product_id, offered_variant_id,
	offered_sku, offered_title, offered_unit_price, decision, decision_ts`

func CreateUpsellEvent(ctx context.Context, db database.SQLDriver, e models.UpsellEvent) (*models.UpsellEvent, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := stamp(&e.OfferedTs); err != nil {
		return nil, err
	}
	if e.Decision != nil && e.DecisionTs == nil {
		e.DecisionTs = &e.OfferedTs
	}

	id, err := insertID(ctx, db,
		`INSERT INTO upsell_events (order_id, checkout_session_id, customer_id, upsell_version, strategy,
			offered_ts, placement, trigger_product_id, offered_product_id, offered_variant_id,
			offered_sku, offered_title, offered_unit_price, decision, decision_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"upsell_event_id",
		e.OrderID, e.CheckoutSessionID, e.CustomerID, e.UpsellVersion, e.Strategy,
		e.OfferedTs, e.Placement, e.TriggerProductID, e.OfferedProductID, e.OfferedVariantID,
		e.OfferedSKU, e.OfferedTitle, e.OfferedUnitPrice, e.Decision, e.DecisionTs)
	if err != nil {
		return nil, fmt.Errorf("create upsell event for session %q: %w", e.CheckoutSessionID, err)
	}
	e.UpsellEventID = id
	return &e, nil
}

func GetUpsellEvent(ctx context.Context, db database.SQLDriver, upsellEventID int64) (*models.UpsellEvent, error) {
	var e models.UpsellEvent
	err := scanUpsellEvent(db.QueryRowContext(ctx,
		"SELECT "+upsellEventColumns+" FROM upsell_events WHERE upsell_event_id = ?", upsellEventID), &e)
	if err != nil {
		return nil, wrapGet(err, "get upsell event", fmt.Sprintf("upsell event %d", upsellEventID))
	}
	return &e, nil
}

// ListSessionUpsellEvents returns the offers shown in a checkout session in
// the order they were shown.
func ListSessionUpsellEvents(ctx context.Context, db database.SQLDriver, shopSessionID string) ([]models.UpsellEvent, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+upsellEventColumns+" FROM upsell_events WHERE checkout_session_id = ? ORDER BY offered_ts, upsell_event_id",
		shopSessionID)
	if err != nil {
		return nil, fmt.Errorf("list upsell events of session %q: %w", shopSessionID, err)
	}
	defer rows.Close()

	var events []models.UpsellEvent
	for rows.Next() {
		var e models.UpsellEvent
		if err := scanUpsellEvent(rows, &e); err != nil {
			return nil, fmt.Errorf("list upsell events of session %q: %w", shopSessionID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanUpsellEvent(row database.Row, e *models.UpsellEvent) error {
	return row.Scan(&e.UpsellEventID, &e.OrderID, &e.CheckoutSessionID, &e.CustomerID, &e.UpsellVersion, &e.Strategy,
		&e.OfferedTs, &e.Placement, &e.TriggerProductID, &e.OfferedProductID, &e.OfferedVariantID,
		&e.OfferedSKU, &e.OfferedTitle, &e.OfferedUnitPrice, &e.Decision, &e.DecisionTs)
}

// DecideUpsellEvent sets the decision of an event. ts defaults to now. An
// event that already has an addition can only be accepted, and one with a
// rejection can only be rejected; anything else fails with a check
// ConstraintError on DecisionConstraint.
func DecideUpsellEvent(ctx context.Context, db database.SQLDriver, upsellEventID int64, decision models.Decision, ts string) error {
	if !decision.Valid() {
		return fmt.Errorf("%w: decision %q", models.ErrInvalid, decision)
	}
	if err := stamp(&ts); err != nil {
		return err
	}
	return db.ExecuteTx(ctx, func(ctx context.Context) error {
		if err := lockUpsellEvent(ctx, db, upsellEventID); err != nil {
			return err
		}
		var additions, rejections int
		err := db.QueryRowContext(ctx,
			`SELECT
				(SELECT COUNT(*) FROM upsell_additions WHERE upsell_event_id = ?),
				(SELECT COUNT(*) FROM upsell_rejections WHERE upsell_event_id = ?)`,
			upsellEventID, upsellEventID).Scan(&additions, &rejections)
		if err != nil {
			return fmt.Errorf("count outcomes of upsell event %d: %w", upsellEventID, err)
		}
		if (additions > 0 && decision != models.DecisionAccepted) || (rejections > 0 && decision != models.DecisionRejected) {
			return &database.ConstraintError{
				Kind:       database.ConstraintCheck,
				Constraint: DecisionConstraint,
				Err:        fmt.Errorf("upsell event %d has a recorded outcome that contradicts %q", upsellEventID, decision),
			}
		}

		if _, err := db.ExecContext(ctx,
			"UPDATE upsell_events SET decision = ?, decision_ts = ? WHERE upsell_event_id = ?",
			string(decision), ts, upsellEventID); err != nil {
			return fmt.Errorf("decide upsell event %d: %w", upsellEventID, err)
		}
		return nil
	})
}

// RecordUpsellAddition stores an accepted offer, marks its event accepted
// and recomputes the order's upsell aggregates, all in one transaction.
func RecordUpsellAddition(ctx context.Context, db database.SQLDriver, a models.UpsellAddition) (*models.UpsellAddition, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.Quantity == 0 {
		a.Quantity = 1
	}
	if err := stamp(&a.AddedTs); err != nil {
		return nil, err
	}

	err := db.ExecuteTx(ctx, func(ctx context.Context) error {
		if err := claimUpsellOutcome(ctx, db, a.UpsellEventID); err != nil {
			return err
		}
		id, err := insertID(ctx, db,
			`INSERT INTO upsell_additions (upsell_event_id, order_id, product_id, variant_id, sku, image_url, quantity, revenue, added_ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			"upsell_addition_id",
			a.UpsellEventID, a.OrderID, a.ProductID, a.VariantID, a.SKU, a.ImageURL, a.Quantity, a.Revenue, a.AddedTs)
		if err != nil {
			return fmt.Errorf("record upsell addition for event %d: %w", a.UpsellEventID, err)
		}
		a.UpsellAdditionID = id

		if err := DecideUpsellEvent(ctx, db, a.UpsellEventID, models.DecisionAccepted, a.AddedTs); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx,
			"UPDATE upsell_events SET order_id = ? WHERE upsell_event_id = ? AND order_id IS NULL",
			a.OrderID, a.UpsellEventID); err != nil {
			return fmt.Errorf("attach order %d to upsell event %d: %w", a.OrderID, a.UpsellEventID, err)
		}
		_, err = RecomputeOrderUpsell(ctx, db, a.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RecordUpsellRejection stores a declined offer and marks its event rejected.
func RecordUpsellRejection(ctx context.Context, db database.SQLDriver, r models.UpsellRejection) (*models.UpsellRejection, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Quantity == 0 {
		r.Quantity = 1
	}
	if err := stamp(&r.RejectedTs); err != nil {
		return nil, err
	}

	err := db.ExecuteTx(ctx, func(ctx context.Context) error {
		if err := claimUpsellOutcome(ctx, db, r.UpsellEventID); err != nil {
			return err
		}
		id, err := insertID(ctx, db,
			`INSERT INTO upsell_rejections (upsell_event_id, order_id, product_id, variant_id, sku, image_url, quantity, revenue, rejected_ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			"upsell_rejection_id",
			r.UpsellEventID, r.OrderID, r.ProductID, r.VariantID, r.SKU, r.ImageURL, r.Quantity, r.Revenue, r.RejectedTs)
		if err != nil {
			return fmt.Errorf("record upsell rejection for event %d: %w", r.UpsellEventID, err)
		}
		r.UpsellRejectionID = id
		return DecideUpsellEvent(ctx, db, r.UpsellEventID, models.DecisionRejected, r.RejectedTs)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RecordUpsellView stores a view-only impression. The event's decision is
// left as it is.
func RecordUpsellView(ctx context.Context, db database.SQLDriver, v models.UpsellView) (*models.UpsellView, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if err := stamp(&v.ViewedTs); err != nil {
		return nil, err
	}

	err := db.ExecuteTx(ctx, func(ctx context.Context) error {
		if err := claimUpsellOutcome(ctx, db, v.UpsellEventID); err != nil {
			return err
		}
		id, err := insertID(ctx, db,
			`INSERT INTO upsell_views (upsell_event_id, order_id, product_id, variant_id, sku, image_url, viewed_ts)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			"upsell_view_id",
			v.UpsellEventID, v.OrderID, v.ProductID, v.VariantID, v.SKU, v.ImageURL, v.ViewedTs)
		if err != nil {
			return fmt.Errorf("record upsell view for event %d: %w", v.UpsellEventID, err)
		}
		v.UpsellViewID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// claimUpsellOutcome locks the event row and fails if an outcome has
// already been recorded for it. SQLite has no row locks; its single writer
// serializes these transactions instead.
func claimUpsellOutcome(ctx context.Context, db database.SQLDriver, upsellEventID int64) error {
	if err := lockUpsellEvent(ctx, db, upsellEventID); err != nil {
		return err
	}

	var outcomes int
	err := db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM upsell_additions WHERE upsell_event_id = ?) +
			(SELECT COUNT(*) FROM upsell_rejections WHERE upsell_event_id = ?) +
			(SELECT COUNT(*) FROM upsell_views WHERE upsell_event_id = ?)`,
		upsellEventID, upsellEventID, upsellEventID).Scan(&outcomes)
	if err != nil {
		return fmt.Errorf("count outcomes of upsell event %d: %w", upsellEventID, err)
	}
	if outcomes > 0 {
		return database.NewUniqueViolation(OutcomeConstraint,
			fmt.Errorf("upsell event %d already has an outcome", upsellEventID))
	}
	return nil
}

func lockUpsellEvent(ctx context.Context, db database.SQLDriver, upsellEventID int64) error {
	lock := "SELECT upsell_event_id FROM upsell_events WHERE upsell_event_id = ?"
	if db.Dialect().Name != database.SQLite.Name {
		lock += " FOR UPDATE"
	}
	var id int64
	if err := db.QueryRowContext(ctx, lock, upsellEventID).Scan(&id); err != nil {
		return wrapGet(err, "lock upsell event", fmt.Sprintf("upsell event %d", upsellEventID))
	}
	return nil
}

// RecomputeOrderUpsell derives has_upsell, upsell_revenue and upsell_count
// from the order's upsell_additions and writes them back.
func RecomputeOrderUpsell(ctx context.Context, db database.SQLDriver, orderID int64) (models.OrderUpsellSummary, error) {
	var summary models.OrderUpsellSummary
	err := db.ExecuteTx(ctx, func(ctx context.Context) error {
		var err error
		summary, err = summarizeAdditions(ctx, db, orderID)
		if err != nil {
			return err
		}
		res, err := db.ExecContext(ctx,
			"UPDATE orders SET has_upsell = ?, upsell_revenue = ?, upsell_count = ? WHERE order_id = ?",
			summary.HasUpsell, summary.UpsellRevenue, summary.UpsellCount, orderID)
		if err != nil {
			return fmt.Errorf("update upsell aggregates of order %d: %w", orderID, err)
		}
		if res.RowsAffected == 0 {
			return notFound("order %d not found", orderID)
		}
		return nil
	})
	return summary, err
}

// CheckOrderUpsellConsistency compares the stored aggregates of an order with
// what its additions imply.
func CheckOrderUpsellConsistency(ctx context.Context, db database.SQLDriver, orderID int64) (stored, expected models.OrderUpsellSummary, err error) {
	stored.OrderID = orderID
	err = db.QueryRowContext(ctx,
		"SELECT has_upsell, upsell_revenue, upsell_count FROM orders WHERE order_id = ?", orderID).
		Scan(&stored.HasUpsell, &stored.UpsellRevenue, &stored.UpsellCount)
	if err != nil {
		return stored, expected, wrapGet(err, "read upsell aggregates", fmt.Sprintf("order %d", orderID))
	}
	expected, err = summarizeAdditions(ctx, db, orderID)
	return stored, expected, err
}

// FindInconsistentOrders returns the ids of orders whose stored aggregates
// disagree with their additions.
func FindInconsistentOrders(ctx context.Context, db database.SQLDriver) ([]int64, error) {
	expected := make(map[int64]*models.OrderUpsellSummary)
	rows, err := db.QueryContext(ctx, "SELECT order_id, revenue FROM upsell_additions")
	if err != nil {
		return nil, fmt.Errorf("scan upsell additions: %w", err)
	}
	for rows.Next() {
		var orderID int64
		var revenue decimal.Decimal
		if err := rows.Scan(&orderID, &revenue); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan upsell additions: %w", err)
		}
		s, ok := expected[orderID]
		if !ok {
			s = &models.OrderUpsellSummary{OrderID: orderID}
			expected[orderID] = s
		}
		s.HasUpsell = true
		s.UpsellCount++
		s.UpsellRevenue = s.UpsellRevenue.Add(revenue)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan upsell additions: %w", err)
	}

	rows, err = db.QueryContext(ctx, "SELECT order_id, has_upsell, upsell_revenue, upsell_count FROM orders ORDER BY order_id")
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	defer rows.Close()

	var inconsistent []int64
	for rows.Next() {
		var stored models.OrderUpsellSummary
		if err := rows.Scan(&stored.OrderID, &stored.HasUpsell, &stored.UpsellRevenue, &stored.UpsellCount); err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		want := models.OrderUpsellSummary{OrderID: stored.OrderID}
		if s, ok := expected[stored.OrderID]; ok {
			want = *s
		}
		if !stored.Equal(want) {
			inconsistent = append(inconsistent, stored.OrderID)
		}
	}
	return inconsistent, rows.Err()
}

func summarizeAdditions(ctx context.Context, db database.SQLDriver, orderID int64) (models.OrderUpsellSummary, error) {
	summary := models.OrderUpsellSummary{OrderID: orderID}
	rows, err := db.QueryContext(ctx, "SELECT revenue FROM upsell_additions WHERE order_id = ?", orderID)
	if err != nil {
		return summary, fmt.Errorf("sum upsell additions of order %d: %w", orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var revenue decimal.Decimal
		if err := rows.Scan(&revenue); err != nil {
			return summary, fmt.Errorf("sum upsell additions of order %d: %w", orderID, err)
		}
		summary.UpsellRevenue = summary.UpsellRevenue.Add(revenue)
		summary.UpsellCount++
	}
	summary.HasUpsell = summary.UpsellCount > 0
	return summary, rows.Err()
}
