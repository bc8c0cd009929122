package funnel

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"upsell-tracker/internal/commerce"
	"upsell-tracker/internal/database"
)

// CatalogBrowseTest is the read path a storefront takes before an offer is
// shown: page through a category, then resolve a product's variants,
// accessories and color matches.
type CatalogBrowseTest struct {
	BaseProducts int
	PageSize     int

	funnel CheckoutFunnelTest
}

func (t *CatalogBrowseTest) Setup(ctx context.Context, db database.DatabaseDriver, logger *zap.Logger) error {
	t.funnel.BaseProducts = t.BaseProducts
	return t.funnel.Setup(ctx, db, logger)
}

func (t *CatalogBrowseTest) Run(ctx context.Context, db database.DatabaseDriver, concurrency int, duration time.Duration, logger *zap.Logger) (*database.Result, error) {
	logger = nopIfNil(logger)
	sqlDB, ok := db.(database.SQLDriver)
	if !ok {
		return nil, fmt.Errorf("catalog_browse needs a relational store, got %s", db.Name())
	}
	bases := t.funnel.bases
	if len(bases) == 0 {
		return nil, fmt.Errorf("catalog_browse: Setup has not seeded a catalog")
	}
	pageSize := t.PageSize
	if pageSize <= 0 {
		pageSize = 5
	}

	rngs := make([]*rand.Rand, max(concurrency, 1))
	for i := range rngs {
		rngs[i] = rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
	}

	result := drive(ctx, concurrency, duration, logger, func(ctx context.Context, worker, _ int) error {
		rng := rngs[worker]
		offset := rng.Intn(len(bases)/pageSize+1) * pageSize
		if _, err := commerce.ListActiveProducts(ctx, sqlDB, "apparel", pageSize, offset); err != nil {
			return err
		}
		base := bases[rng.Intn(len(bases))]
		if _, err := commerce.ListVariants(ctx, sqlDB, base.product.ProductID); err != nil {
			return err
		}
		if _, err := commerce.ListAccessories(ctx, sqlDB, base.product.ProductID); err != nil {
			return err
		}
		_, err := commerce.ListColorMatches(ctx, sqlDB, base.product.ProductID, *base.variant.ColorCode)
		return err
	})

	intact, err := t.accessoriesResolve(ctx, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("verify accessory rules: %w", err)
	}
	result.DataIntegrity = intact
	return result, nil
}

// accessoriesResolve holds when every seeded base still lists both of its
// accessories in priority order and each one is a seeded accessory.
func (t *CatalogBrowseTest) accessoriesResolve(ctx context.Context, db database.SQLDriver) (bool, error) {
	for _, base := range t.funnel.bases {
		rules, err := commerce.ListAccessories(ctx, db, base.product.ProductID)
		if err != nil {
			return false, err
		}
		if len(rules) != 2 || rules[0].Priority > rules[1].Priority {
			return false, nil
		}
		for _, r := range rules {
			if _, ok := t.funnel.accessories[r.AccessoryProductID]; !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

func (t *CatalogBrowseTest) Teardown(ctx context.Context, db database.DatabaseDriver, logger *zap.Logger) error {
	return t.funnel.Teardown(ctx, db, logger)
}
