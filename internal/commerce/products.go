package commerce

import (
	"context"
	"fmt"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

const productColumns = "product_id, sku, title, image_url, category, subcategory, is_accessory, active"

func CreateProduct(ctx context.Context, db database.SQLDriver, p models.Product) (*models.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	id, err := insertID(ctx, db,
		"INSERT INTO products (sku, title, image_url, category, subcategory, is_accessory, active) VALUES (?, ?, ?, ?, ?, ?, ?)",
		"product_id",
		p.SKU, p.Title, p.ImageURL, p.Category, p.Subcategory, p.IsAccessory, p.Active)
	if err != nil {
		return nil, fmt.Errorf("create product %q: %w", p.SKU, err)
	}
	p.ProductID = id
	return &p, nil
}

func GetProduct(ctx context.Context, db database.SQLDriver, productID int64) (*models.Product, error) {
	var p models.Product
	err := scanProduct(db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE product_id = ?", productID), &p)
	if err != nil {
		return nil, wrapGet(err, "get product", fmt.Sprintf("product %d", productID))
	}
	return &p, nil
}

func GetProductBySKU(ctx context.Context, db database.SQLDriver, sku string) (*models.Product, error) {
	var p models.Product
	err := scanProduct(db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE sku = ?", sku), &p)
	if err != nil {
		return nil, wrapGet(err, "get product", fmt.Sprintf("product sku %q", sku))
	}
	return &p, nil
}

// ListActiveProducts pages through active products by id. An empty category
// matches every category.
func ListActiveProducts(ctx context.Context, db database.SQLDriver, category string, limit, offset int) ([]models.Product, error) {
	limit, offset = normalizePage(limit, offset)
	query := "SELECT " + productColumns + " FROM products WHERE active = ?"
	args := []interface{}{true}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " ORDER BY product_id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func SetProductActive(ctx context.Context, db database.SQLDriver, productID int64, active bool) error {
	res, err := db.ExecContext(ctx, "UPDATE products SET active = ? WHERE product_id = ?", active, productID)
	if err != nil {
		return fmt.Errorf("set product %d active: %w", productID, err)
	}
	if res.RowsAffected == 0 {
		return notFound("product %d not found", productID)
	}
	return nil
}

func scanProduct(row database.Row, p *models.Product) error {
	return row.Scan(&p.ProductID, &p.SKU, &p.Title, &p.ImageURL, &p.Category, &p.Subcategory, &p.IsAccessory, &p.Active)
}

const variantColumns = "variant_id, product_id, sku, color_code, color_name, size, price, active"

func CreateVariant(ctx context.Context, db database.SQLDriver, v models.ProductVariant) (*models.ProductVariant, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	id, err := insertID(ctx, db,
		"INSERT INTO product_variants (product_id, sku, color_code, color_name, size, price, active) VALUES (?, ?, ?, ?, ?, ?, ?)",
		"variant_id",
		v.ProductID, v.SKU, v.ColorCode, v.ColorName, v.Size, v.Price, v.Active)
	if err != nil {
		return nil, fmt.Errorf("create variant %q: %w", v.SKU, err)
	}
	v.VariantID = id
	return &v, nil
}

func GetVariant(ctx context.Context, db database.SQLDriver, variantID int64) (*models.ProductVariant, error) {
	var v models.ProductVariant
	err := scanVariant(db.QueryRowContext(ctx, "SELECT "+variantColumns+" FROM product_variants WHERE variant_id = ?", variantID), &v)
	if err != nil {
		return nil, wrapGet(err, "get variant", fmt.Sprintf("variant %d", variantID))
	}
	return &v, nil
}

func ListVariants(ctx context.Context, db database.SQLDriver, productID int64) ([]models.ProductVariant, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+variantColumns+" FROM product_variants WHERE product_id = ? ORDER BY variant_id", productID)
	if err != nil {
		return nil, fmt.Errorf("list variants of product %d: %w", productID, err)
	}
	defer rows.Close()

	var variants []models.ProductVariant
	for rows.Next() {
		var v models.ProductVariant
		if err := scanVariant(rows, &v); err != nil {
			return nil, fmt.Errorf("list variants of product %d: %w", productID, err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func scanVariant(row database.Row, v *models.ProductVariant) error {
	return row.Scan(&v.VariantID, &v.ProductID, &v.SKU, &v.ColorCode, &v.ColorName, &v.Size, &v.Price, &v.Active)
}

// AddAccessoryRule stores a base → accessory suggestion. A second rule for
// the same pair fails with a uniqueness ConstraintError.
func AddAccessoryRule(ctx context.Context, db database.SQLDriver, r models.AccessoryRule) (*models.AccessoryRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Priority == 0 {
		r.Priority = models.DefaultRulePriority
	}
	_, err := db.ExecContext(ctx,
		"INSERT INTO product_accessory_map (base_product_id, accessory_product_id, rule_type, priority) VALUES (?, ?, ?, ?)",
		r.BaseProductID, r.AccessoryProductID, r.RuleType, r.Priority)
	if err != nil {
		return nil, fmt.Errorf("add accessory rule %d -> %d: %w", r.BaseProductID, r.AccessoryProductID, err)
	}
	return &r, nil
}

// ListAccessories returns the accessory rules of a base product, lowest
// priority value first.
func ListAccessories(ctx context.Context, db database.SQLDriver, baseProductID int64) ([]models.AccessoryRule, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT base_product_id, accessory_product_id, rule_type, priority
		FROM product_accessory_map WHERE base_product_id = ?
		ORDER BY priority, accessory_product_id`, baseProductID)
	if err != nil {
		return nil, fmt.Errorf("list accessories of product %d: %w", baseProductID, err)
	}
	defer rows.Close()

	var rules []models.AccessoryRule
	for rows.Next() {
		var r models.AccessoryRule
		if err := rows.Scan(&r.BaseProductID, &r.AccessoryProductID, &r.RuleType, &r.Priority); err != nil {
			return nil, fmt.Errorf("list accessories of product %d: %w", baseProductID, err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func AddColorMatchRule(ctx context.Context, db database.SQLDriver, r models.ColorMatchRule) (*models.ColorMatchRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Priority == 0 {
		r.Priority = models.DefaultRulePriority
	}
	_, err := db.ExecContext(ctx,
		"INSERT INTO product_color_match_map (base_product_id, match_product_id, base_color_code, match_color_code, priority) VALUES (?, ?, ?, ?, ?)",
		r.BaseProductID, r.MatchProductID, r.BaseColorCode, r.MatchColorCode, r.Priority)
	if err != nil {
		return nil, fmt.Errorf("add color match rule %d -> %d: %w", r.BaseProductID, r.MatchProductID, err)
	}
	return &r, nil
}

// ListColorMatches returns color-match rules for a base product. When
// baseColor is set, only rules for that color or for any color (null) match.
func ListColorMatches(ctx context.Context, db database.SQLDriver, baseProductID int64, baseColor string) ([]models.ColorMatchRule, error) {
	query := `SELECT base_product_id, match_product_id, base_color_code, match_color_code, priority
		FROM product_color_match_map WHERE base_product_id = ?`
	args := []interface{}{baseProductID}
	if baseColor != "" {
		query += " AND (base_color_code = ? OR base_color_code IS NULL)"
		args = append(args, baseColor)
	}
	query += " ORDER BY priority, match_product_id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list color matches of product %d: %w", baseProductID, err)
	}
	defer rows.Close()

	var rules []models.ColorMatchRule
	for rows.Next() {
		var r models.ColorMatchRule
		if err := rows.Scan(&r.BaseProductID, &r.MatchProductID, &r.BaseColorCode, &r.MatchColorCode, &r.Priority); err != nil {
			return nil, fmt.Errorf("list color matches of product %d: %w", baseProductID, err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
