package funnel

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"upsell-tracker/internal/commerce"
	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

const DefaultDashboardFlows = 200

// UpsellDashboardTest measures the reporting side: Setup replays a batch of
// checkout flows, then workers query conversion by placement and the most
// accepted accessories while nothing writes.
type UpsellDashboardTest struct {
	// Flows is the number of checkouts seeded before the run.
	Flows int

	funnel CheckoutFunnelTest
}

func (t *UpsellDashboardTest) Setup(ctx context.Context, db database.DatabaseDriver, logger *zap.Logger) error {
	logger = nopIfNil(logger)
	if err := t.funnel.Setup(ctx, db, logger); err != nil {
		return err
	}
	sqlDB := db.(database.SQLDriver)

	flows := t.Flows
	if flows <= 0 {
		flows = DefaultDashboardFlows
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < flows; i++ {
		if err := t.funnel.checkout(ctx, sqlDB, rng); err != nil {
			return fmt.Errorf("seed checkout %d: %w", i, err)
		}
	}
	logger.Info("dashboard history seeded", zap.Int("flows", flows))
	return nil
}

func (t *UpsellDashboardTest) Run(ctx context.Context, db database.DatabaseDriver, concurrency int, duration time.Duration, logger *zap.Logger) (*database.Result, error) {
	logger = nopIfNil(logger)
	sqlDB, ok := db.(database.SQLDriver)
	if !ok {
		return nil, fmt.Errorf("upsell_dashboard needs a relational store, got %s", db.Name())
	}

	result := drive(ctx, concurrency, duration, logger, func(ctx context.Context, _, iteration int) error {
		if iteration%2 == 1 {
			_, err := commerce.TopAcceptedProducts(ctx, sqlDB, 1, 10)
			return err
		}
		since := models.FormatTimestamp(time.Now().Add(-time.Hour))
		_, err := commerce.UpsellConversionByPlacement(ctx, sqlDB, since)
		return err
	})

	intact, err := reportMatchesEvents(ctx, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("verify dashboard totals: %w", err)
	}
	result.DataIntegrity = intact
	if !intact {
		logger.Error("conversion report disagrees with stored events")
	}
	return result, nil
}

// reportMatchesEvents checks the all-time report against raw row counts.
func reportMatchesEvents(ctx context.Context, db database.SQLDriver) (bool, error) {
	report, err := commerce.UpsellConversionByPlacement(ctx, db, "")
	if err != nil {
		return false, err
	}
	var offered, accepted int64
	for _, p := range report {
		offered += p.Offered
		accepted += p.Accepted
	}

	var events, additions int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM upsell_events").Scan(&events); err != nil {
		return false, err
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM upsell_additions").Scan(&additions); err != nil {
		return false, err
	}
	return offered == events && accepted == additions, nil
}

func (t *UpsellDashboardTest) Teardown(ctx context.Context, db database.DatabaseDriver, logger *zap.Logger) error {
	return t.funnel.Teardown(ctx, db, logger)
}
