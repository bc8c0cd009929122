package commerce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

func testProductSKUConflict(t *testing.T, db database.SQLDriver) {
	ctx := context.Background()

	p, err := CreateProduct(ctx, db, models.Product{SKU: "TEE-1", Title: "Tee", Category: strPtr("tops"), Active: true})
	require.NoError(t, err)
	assert.Positive(t, p.ProductID)

	_, err = CreateProduct(ctx, db, models.Product{SKU: "TEE-1", Title: "Another tee"})
	assert.ErrorIs(t, err, database.ErrConstraintViolation)
	assert.True(t, database.IsConflict(err), "duplicate sku: %v", err)

	_, err = CreateProduct(ctx, db, models.Product{SKU: "", Title: "No sku"})
	assert.ErrorIs(t, err, models.ErrInvalid)

	bySKU, err := GetProductBySKU(ctx, db, "TEE-1")
	require.NoError(t, err)
	assert.Equal(t, *p, *bySKU)

	_, err = GetProduct(ctx, db, p.ProductID+100)
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = CreateProduct(ctx, db, models.Product{SKU: "HAT-1", Title: "Hat", Category: strPtr("hats"), Active: true})
	require.NoError(t, err)
	tops, err := ListActiveProducts(ctx, db, "tops", 0, 0)
	require.NoError(t, err)
	require.Len(t, tops, 1)
	assert.Equal(t, "TEE-1", tops[0].SKU)

	require.NoError(t, SetProductActive(ctx, db, p.ProductID, false))
	active, err := ListActiveProducts(ctx, db, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "HAT-1", active[0].SKU)

	assert.ErrorIs(t, SetProductActive(ctx, db, p.ProductID+100, true), database.ErrNotFound)
}

func testAccessoryRules(t *testing.T, db database.SQLDriver) {
	ctx := context.Background()
	base, err := CreateProduct(ctx, db, models.Product{SKU: "TEE-1", Title: "Tee", Active: true})
	require.NoError(t, err)
	capProduct, err := CreateProduct(ctx, db, models.Product{SKU: "CAP-1", Title: "Cap", IsAccessory: true, Active: true})
	require.NoError(t, err)
	sock, err := CreateProduct(ctx, db, models.Product{SKU: "SOCK-1", Title: "Socks", IsAccessory: true, Active: true})
	require.NoError(t, err)

	rule, err := AddAccessoryRule(ctx, db, models.AccessoryRule{BaseProductID: base.ProductID, AccessoryProductID: capProduct.ProductID, RuleType: "complement"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRulePriority, rule.Priority)
	_, err = AddAccessoryRule(ctx, db, models.AccessoryRule{BaseProductID: base.ProductID, AccessoryProductID: sock.ProductID, RuleType: "bundle", Priority: 10})
	require.NoError(t, err)

	_, err = AddAccessoryRule(ctx, db, models.AccessoryRule{BaseProductID: base.ProductID, AccessoryProductID: capProduct.ProductID, RuleType: "other"})
	assert.True(t, database.IsConflict(err), "duplicate pair: %v", err)

	_, err = AddAccessoryRule(ctx, db, models.AccessoryRule{BaseProductID: base.ProductID, AccessoryProductID: sock.ProductID + 100, RuleType: "bundle"})
	var ce *database.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, database.ConstraintForeignKey, ce.Kind)

	rules, err := ListAccessories(ctx, db, base.ProductID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, sock.ProductID, rules[0].AccessoryProductID)
	assert.Equal(t, capProduct.ProductID, rules[1].AccessoryProductID)
}

func testColorMatchRules(t *testing.T, db database.SQLDriver) {
	ctx := context.Background()
	base, err := CreateProduct(ctx, db, models.Product{SKU: "TEE-1", Title: "Tee", Active: true})
	require.NoError(t, err)
	navy, err := CreateProduct(ctx, db, models.Product{SKU: "PANT-NVY", Title: "Navy pants", Active: true})
	require.NoError(t, err)
	khaki, err := CreateProduct(ctx, db, models.Product{SKU: "PANT-KHK", Title: "Khaki pants", Active: true})
	require.NoError(t, err)

	_, err = AddColorMatchRule(ctx, db, models.ColorMatchRule{BaseProductID: base.ProductID, MatchProductID: navy.ProductID, BaseColorCode: strPtr("WHT"), MatchColorCode: strPtr("NVY"), Priority: 5})
	require.NoError(t, err)
	_, err = AddColorMatchRule(ctx, db, models.ColorMatchRule{BaseProductID: base.ProductID, MatchProductID: khaki.ProductID})
	require.NoError(t, err)

	_, err = AddColorMatchRule(ctx, db, models.ColorMatchRule{BaseProductID: base.ProductID, MatchProductID: navy.ProductID, BaseColorCode: strPtr("WHT"), MatchColorCode: strPtr("NVY")})
	assert.True(t, database.IsConflict(err), "duplicate color rule: %v", err)

	white, err := ListColorMatches(ctx, db, base.ProductID, "WHT")
	require.NoError(t, err)
	require.Len(t, white, 2)
	assert.Equal(t, navy.ProductID, white[0].MatchProductID)
	assert.Nil(t, white[1].BaseColorCode)

	black, err := ListColorMatches(ctx, db, base.ProductID, "BLK")
	require.NoError(t, err)
	require.Len(t, black, 1)
	assert.Equal(t, khaki.ProductID, black[0].MatchProductID)
}

func testVariants(t *testing.T, db database.SQLDriver) {
	ctx := context.Background()
	p, err := CreateProduct(ctx, db, models.Product{SKU: "CAP-1", Title: "Cap", Active: true})
	require.NoError(t, err)

	v, err := CreateVariant(ctx, db, models.ProductVariant{ProductID: p.ProductID, SKU: "CAP-1-BLK", ColorCode: strPtr("BLK"), Price: money("19.99"), Active: true})
	require.NoError(t, err)

	got, err := GetVariant(ctx, db, v.VariantID)
	require.NoError(t, err)
	assert.True(t, money("19.99").Equal(got.Price), "price %s", got.Price)
	assert.Equal(t, "BLK", *got.ColorCode)

	_, err = CreateVariant(ctx, db, models.ProductVariant{ProductID: p.ProductID, SKU: "CAP-1-BLK", Price: money("1")})
	assert.True(t, database.IsConflict(err))

	_, err = CreateVariant(ctx, db, models.ProductVariant{ProductID: p.ProductID + 100, SKU: "ORPHAN", Price: money("1")})
	assert.ErrorIs(t, err, database.ErrConstraintViolation)

	_, err = CreateVariant(ctx, db, models.ProductVariant{ProductID: p.ProductID, SKU: "NEG", Price: money("-1")})
	assert.ErrorIs(t, err, models.ErrInvalid)

	variants, err := ListVariants(ctx, db, p.ProductID)
	require.NoError(t, err)
	assert.Len(t, variants, 1)
}
