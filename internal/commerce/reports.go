package commerce

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"upsell-tracker/internal/database"
)

// PlacementConversion summarizes how offers shown at one placement were
// answered.
type PlacementConversion struct {
	Placement string          `json:"placement"`
	Offered   int64           `json:"offered"`
	Accepted  int64           `json:"accepted"`
	Rejected  int64           `json:"rejected"`
	Ignored   int64           `json:"ignored"`
	Undecided int64           `json:"undecided"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// AcceptanceRate is accepted over offered, or 0 when nothing was offered.
func (p PlacementConversion) AcceptanceRate() float64 {
	if p.Offered == 0 {
		return 0
	}
	return float64(p.Accepted) / float64(p.Offered)
}

// UpsellConversionByPlacement reports offers made at or after since (any
// ISO-8601 timestamp; empty means all time), grouped by placement.
func UpsellConversionByPlacement(ctx context.Context, db database.SQLDriver, since string) ([]PlacementConversion, error) {
	if since != "" {
		if err := stamp(&since); err != nil {
			return nil, err
		}
	}

	rows, err := db.QueryContext(ctx,
		`SELECT placement,
			COUNT(*),
			SUM(CASE WHEN decision = 'accepted' THEN 1 ELSE 0 END),
			SUM(CASE WHEN decision = 'rejected' THEN 1 ELSE 0 END),
			SUM(CASE WHEN decision = 'ignored' THEN 1 ELSE 0 END),
			SUM(CASE WHEN decision IS NULL THEN 1 ELSE 0 END)
		FROM upsell_events WHERE offered_ts >= ?
		GROUP BY placement ORDER BY placement`, since)
	if err != nil {
		return nil, fmt.Errorf("upsell conversion report: %w", err)
	}
	var report []PlacementConversion
	index := make(map[string]int)
	for rows.Next() {
		var p PlacementConversion
		if err := rows.Scan(&p.Placement, &p.Offered, &p.Accepted, &p.Rejected, &p.Ignored, &p.Undecided); err != nil {
			rows.Close()
			return nil, fmt.Errorf("upsell conversion report: %w", err)
		}
		index[p.Placement] = len(report)
		report = append(report, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("upsell conversion report: %w", err)
	}

	// Revenue is summed here rather than in SQL so SQLite's text-encoded
	// amounts add up exactly.
	rows, err = db.QueryContext(ctx,
		`SELECT e.placement, a.revenue
		FROM upsell_additions a JOIN upsell_events e ON e.upsell_event_id = a.upsell_event_id
		WHERE e.offered_ts >= ?`, since)
	if err != nil {
		return nil, fmt.Errorf("upsell revenue report: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var placement string
		var revenue decimal.Decimal
		if err := rows.Scan(&placement, &revenue); err != nil {
			return nil, fmt.Errorf("upsell revenue report: %w", err)
		}
		if i, ok := index[placement]; ok {
			report[i].Revenue = report[i].Revenue.Add(revenue)
		}
	}
	return report, rows.Err()
}

type ProductCount struct {
	ProductID int64 `json:"productId"`
	Count     int64 `json:"count"`
}

// TopAcceptedProducts returns the products most often added through an
// upsell, accepted at least minCount times.
func TopAcceptedProducts(ctx context.Context, db database.SQLDriver, minCount, limit int) ([]ProductCount, error) {
	limit, _ = normalizePage(limit, 0)
	rows, err := db.QueryContext(ctx,
		`SELECT product_id, COUNT(*) FROM upsell_additions
		GROUP BY product_id HAVING COUNT(*) >= ?
		ORDER BY COUNT(*) DESC, product_id LIMIT ?`, minCount, limit)
	if err != nil {
		return nil, fmt.Errorf("top accepted products: %w", err)
	}
	defer rows.Close()

	var top []ProductCount
	for rows.Next() {
		var pc ProductCount
		if err := rows.Scan(&pc.ProductID, &pc.Count); err != nil {
			return nil, fmt.Errorf("top accepted products: %w", err)
		}
		top = append(top, pc)
	}
	return top, rows.Err()
}
