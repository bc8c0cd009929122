package funnel

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"upsell-tracker/internal/commerce"
	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

const (
	DefaultBaseProducts = 10
	accessoryPool       = 5
)

var placements = []string{"cart_drawer", "checkout_page", "post_purchase"}

type catalogEntry struct {
	product models.Product
	variant models.ProductVariant
}

// CheckoutFunnelTest drives complete purchase flows: a customer opens a
// session, places an order, is offered an accessory and either takes it,
// declines it or only sees it. DataIntegrity holds when every order's upsell
// aggregates match its additions afterwards.
type CheckoutFunnelTest struct {
	// BaseProducts is the number of non-accessory products seeded.
	BaseProducts int

	bases       []catalogEntry
	accessories map[int64]catalogEntry
	nextOrderID atomic.Int64
}

func (t *CheckoutFunnelTest) Setup(ctx context.Context, db database.DatabaseDriver, logger *zap.Logger) error {
	logger = nopIfNil(logger)
	sqlDB, ok := db.(database.SQLDriver)
	if !ok {
		return fmt.Errorf("checkout_funnel needs a relational store, got %s", db.Name())
	}
	logger.Info("setting up checkout funnel", zap.String("db", db.Name()))

	if err := commerce.Migrate(ctx, sqlDB, logger); err != nil {
		return err
	}
	if err := t.seedCatalog(ctx, sqlDB); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	var maxOrderID int64
	if err := sqlDB.QueryRowContext(ctx, "SELECT COALESCE(MAX(order_id), 0) FROM orders").Scan(&maxOrderID); err != nil {
		return err
	}
	t.nextOrderID.Store(maxOrderID)

	logger.Info("catalog seeded", zap.Int("base_products", len(t.bases)), zap.Int("accessories", len(t.accessories)))
	return nil
}

func (t *CheckoutFunnelTest) seedCatalog(ctx context.Context, db database.SQLDriver) error {
	n := t.BaseProducts
	if n <= 0 {
		n = DefaultBaseProducts
	}
	run := uuid.NewString()[:8]
	t.bases = t.bases[:0]
	t.accessories = make(map[int64]catalogEntry, accessoryPool)

	return db.ExecuteTx(ctx, func(ctx context.Context) error {
		accessoryIDs := make([]int64, 0, accessoryPool)
		for i := 0; i < accessoryPool; i++ {
			entry, err := seedProduct(ctx, db, fmt.Sprintf("ACC-%s-%02d", run, i), "accessories", true, decimal.New(int64(500+i*250), -2))
			if err != nil {
				return err
			}
			t.accessories[entry.product.ProductID] = entry
			accessoryIDs = append(accessoryIDs, entry.product.ProductID)
		}

		for i := 0; i < n; i++ {
			entry, err := seedProduct(ctx, db, fmt.Sprintf("BASE-%s-%02d", run, i), "apparel", false, decimal.New(int64(2000+i*100), -2))
			if err != nil {
				return err
			}
			t.bases = append(t.bases, entry)

			for rank, accID := range []int64{accessoryIDs[i%accessoryPool], accessoryIDs[(i+1)%accessoryPool]} {
				_, err := commerce.AddAccessoryRule(ctx, db, models.AccessoryRule{
					BaseProductID:      entry.product.ProductID,
					AccessoryProductID: accID,
					RuleType:           "complement",
					Priority:           (rank + 1) * 10,
				})
				if err != nil {
					return err
				}
			}
		}

		for i := range t.bases {
			next := t.bases[(i+1)%len(t.bases)]
			if next.product.ProductID == t.bases[i].product.ProductID {
				continue
			}
			_, err := commerce.AddColorMatchRule(ctx, db, models.ColorMatchRule{
				BaseProductID:  t.bases[i].product.ProductID,
				MatchProductID: next.product.ProductID,
				BaseColorCode:  t.bases[i].variant.ColorCode,
				MatchColorCode: next.variant.ColorCode,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func seedProduct(ctx context.Context, db database.SQLDriver, sku, category string, accessory bool, price decimal.Decimal) (catalogEntry, error) {
	product, err := commerce.CreateProduct(ctx, db, models.Product{
		SKU:         sku,
		Title:       sku,
		Category:    &category,
		IsAccessory: accessory,
		Active:      true,
	})
	if err != nil {
		return catalogEntry{}, err
	}
	color := "BLK"
	variant, err := commerce.CreateVariant(ctx, db, models.ProductVariant{
		ProductID: product.ProductID,
		SKU:       sku + "-" + color,
		ColorCode: &color,
		Price:     price,
		Active:    true,
	})
	if err != nil {
		return catalogEntry{}, err
	}
	return catalogEntry{product: *product, variant: *variant}, nil
}

func (t *CheckoutFunnelTest) Run(ctx context.Context, db database.DatabaseDriver, concurrency int, duration time.Duration, logger *zap.Logger) (*database.Result, error) {
	logger = nopIfNil(logger)
	sqlDB, ok := db.(database.SQLDriver)
	if !ok {
		return nil, fmt.Errorf("checkout_funnel needs a relational store, got %s", db.Name())
	}
	if len(t.bases) == 0 {
		return nil, fmt.Errorf("checkout_funnel: Setup has not seeded a catalog")
	}

	rngs := make([]*rand.Rand, max(concurrency, 1))
	for i := range rngs {
		rngs[i] = rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
	}

	result := drive(ctx, concurrency, duration, logger, func(ctx context.Context, worker, _ int) error {
		return t.checkout(ctx, sqlDB, rngs[worker])
	})

	inconsistent, err := commerce.FindInconsistentOrders(ctx, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("verify order aggregates: %w", err)
	}
	result.DataIntegrity = len(inconsistent) == 0
	if !result.DataIntegrity {
		logger.Error("orders with diverging upsell aggregates", zap.Int64s("order_ids", inconsistent))
	}
	return result, nil
}

// checkout performs one shopper's flow. The order and everything hanging
// off it commit together.
func (t *CheckoutFunnelTest) checkout(ctx context.Context, db database.SQLDriver, rng *rand.Rand) error {
	customer, err := commerce.CreateCustomer(ctx, db, models.Customer{CustomerID: "cust-" + uuid.NewString()})
	if err != nil {
		return err
	}
	session, err := commerce.CreateCheckoutSession(ctx, db, models.CheckoutSession{
		ShopSessionID: "shop-" + uuid.NewString(),
		CustomerID:    &customer.CustomerID,
	})
	if err != nil {
		return err
	}

	base := t.bases[rng.Intn(len(t.bases))]
	orderID := t.nextOrderID.Add(1)

	return db.ExecuteTx(ctx, func(ctx context.Context) error {
		order, err := commerce.CreateOrder(ctx, db, models.Order{
			OrderID:           orderID,
			CustomerID:        &customer.CustomerID,
			CheckoutSessionID: &session.ShopSessionID,
			OrderTs:           models.Now(),
			Currency:          "USD",
			Subtotal:          base.variant.Price,
			Total:             base.variant.Price,
		})
		if err != nil {
			return err
		}
		_, err = commerce.AddOrderItem(ctx, db, models.OrderItem{
			OrderID:   order.OrderID,
			ProductID: base.product.ProductID,
			VariantID: &base.variant.VariantID,
			SKU:       &base.variant.SKU,
			Title:     &base.product.Title,
			UnitPrice: base.variant.Price,
		})
		if err != nil {
			return err
		}

		rules, err := commerce.ListAccessories(ctx, db, base.product.ProductID)
		if err != nil {
			return err
		}
		if len(rules) == 0 {
			return commerce.LinkSessionOrder(ctx, db, session.ShopSessionID, order.OrderID)
		}
		accessory := t.accessories[rules[rng.Intn(len(rules))].AccessoryProductID]

		event, err := commerce.CreateUpsellEvent(ctx, db, models.UpsellEvent{
			CheckoutSessionID: session.ShopSessionID,
			CustomerID:        &customer.CustomerID,
			Strategy:          &rules[0].RuleType,
			Placement:         placements[rng.Intn(len(placements))],
			TriggerProductID:  &base.product.ProductID,
			OfferedProductID:  accessory.product.ProductID,
			OfferedVariantID:  &accessory.variant.VariantID,
			OfferedSKU:        &accessory.variant.SKU,
			OfferedTitle:      &accessory.product.Title,
			OfferedUnitPrice:  accessory.variant.Price,
		})
		if err != nil {
			return err
		}

		switch rng.Intn(3) {
		case 0:
			quantity := 1 + rng.Intn(2)
			revenue := accessory.variant.Price.Mul(decimal.NewFromInt(int64(quantity)))
			if _, err := commerce.RecordUpsellAddition(ctx, db, models.UpsellAddition{
				UpsellEventID: event.UpsellEventID,
				OrderID:       order.OrderID,
				ProductID:     accessory.product.ProductID,
				VariantID:     &accessory.variant.VariantID,
				SKU:           &accessory.variant.SKU,
				Quantity:      quantity,
				Revenue:       revenue,
			}); err != nil {
				return err
			}
			if _, err := commerce.AddOrderItem(ctx, db, models.OrderItem{
				OrderID:       order.OrderID,
				ProductID:     accessory.product.ProductID,
				VariantID:     &accessory.variant.VariantID,
				SKU:           &accessory.variant.SKU,
				Title:         &accessory.product.Title,
				Quantity:      quantity,
				UnitPrice:     accessory.variant.Price,
				IsUpsellItem:  true,
				UpsellEventID: &event.UpsellEventID,
			}); err != nil {
				return err
			}
		case 1:
			if _, err := commerce.RecordUpsellRejection(ctx, db, models.UpsellRejection{
				UpsellEventID: event.UpsellEventID,
				OrderID:       &order.OrderID,
				ProductID:     accessory.product.ProductID,
				VariantID:     &accessory.variant.VariantID,
				SKU:           &accessory.variant.SKU,
				Revenue:       accessory.variant.Price,
			}); err != nil {
				return err
			}
		default:
			if _, err := commerce.RecordUpsellView(ctx, db, models.UpsellView{
				UpsellEventID: event.UpsellEventID,
				OrderID:       &order.OrderID,
				ProductID:     accessory.product.ProductID,
				VariantID:     &accessory.variant.VariantID,
				SKU:           &accessory.variant.SKU,
			}); err != nil {
				return err
			}
		}

		return commerce.LinkSessionOrder(ctx, db, session.ShopSessionID, order.OrderID)
	})
}

func (t *CheckoutFunnelTest) Teardown(ctx context.Context, db database.DatabaseDriver, logger *zap.Logger) error {
	nopIfNil(logger).Info("tearing down checkout funnel", zap.String("db", db.Name()))
	t.bases = nil
	t.accessories = nil
	return db.Reset(ctx)
}
