package commerce

import (
	"strings"

	"upsell-tracker/internal/database"
)

// Table DDL is written once with {{type}} tokens and expanded per dialect.
// Indexes are separate statements: Postgres and SQLite get
// CREATE INDEX IF NOT EXISTS, while MySQL has no such form and Migrate
// checks information_schema before each one instead.

func GetCustomersSchema(d database.Dialect) []string {
	return expand(d, `
		CREATE TABLE IF NOT EXISTS customers (
			customer_id {{key}} PRIMARY KEY,
			email {{text}},
			created_ts {{ts}}
		)
	`)
}

func GetProductsSchema(d database.Dialect) []string {
	return expand(d, `
		CREATE TABLE IF NOT EXISTS products (
			product_id {{id}},
			sku {{key}} NOT NULL,
			title {{text}} NOT NULL,
			image_url {{text}},
			category {{key}},
			subcategory {{key}},
			is_accessory {{bool}} NOT NULL DEFAULT {{false}},
			active {{bool}} NOT NULL DEFAULT {{true}},
			CONSTRAINT products_sku_unique UNIQUE (sku)
		)
	`,
		"CREATE INDEX idx_products_category ON products (category)",
		"CREATE INDEX idx_products_active ON products (active)",
	)
}

func GetProductVariantsSchema(d database.Dialect) []string {
	return expand(d, `
		CREATE TABLE IF NOT EXISTS product_variants (
			variant_id {{id}},
			product_id {{bigint}} NOT NULL,
			sku {{key}} NOT NULL,
			color_code {{key}},
			color_name {{text}},
			size {{key}},
			price {{money}} NOT NULL,
			active {{bool}} NOT NULL DEFAULT {{true}},
			CONSTRAINT variants_sku_unique UNIQUE (sku),
			CONSTRAINT fk_variants_product FOREIGN KEY (product_id) REFERENCES products (product_id)
		)
	`,
		"CREATE INDEX idx_variants_product ON product_variants (product_id)",
		"CREATE INDEX idx_variants_color ON product_variants (color_code)",
		"CREATE INDEX idx_variants_active ON product_variants (active)",
	)
}

func GetProductAccessoryMapSchema(d database.Dialect) []string {
	return expand(d, `
		CREATE TABLE IF NOT EXISTS product_accessory_map (
			base_product_id {{bigint}} NOT NULL,
			accessory_product_id {{bigint}} NOT NULL,
			rule_type {{key}} NOT NULL,
			priority {{int}} NOT NULL DEFAULT 100,
			CONSTRAINT product_accessory_map_pk UNIQUE (base_product_id, accessory_product_id),
			CONSTRAINT fk_accessory_base FOREIGN KEY (base_product_id) REFERENCES products (product_id),
			CONSTRAINT fk_accessory_acc FOREIGN KEY (accessory_product_id) REFERENCES products (product_id)
		)
	`,
		"CREATE INDEX idx_accessory_base ON product_accessory_map (base_product_id)",
		"CREATE INDEX idx_accessory_acc ON product_accessory_map (accessory_product_id)",
	)
}

func GetProductColorMatchMapSchema(d database.Dialect) []string {
	return expand(d, `
		CREATE TABLE IF NOT EXISTS product_color_match_map (
			base_product_id {{bigint}} NOT NULL,
			match_product_id {{bigint}} NOT NULL,
			base_color_code {{key}},
			match_color_code {{key}},
			priority {{int}} NOT NULL DEFAULT 100,
			CONSTRAINT product_color_match_map_pk UNIQUE (base_product_id, match_product_id, base_color_code, match_color_code),
			CONSTRAINT fk_color_match_base FOREIGN KEY (base_product_id) REFERENCES products (product_id),
			CONSTRAINT fk_color_match_match FOREIGN KEY (match_product_id) REFERENCES products (product_id)
		)
	`,
		"CREATE INDEX idx_color_match_base ON product_color_match_map (base_product_id)",
		"CREATE INDEX idx_color_match_match ON product_color_match_map (match_product_id)",
	)
}

// GetCheckoutSessionsSchema declares the order_id foreign key inline only on
// SQLite, which resolves references lazily. Elsewhere orders does not exist
// yet and the key is added by a later migration.
func GetCheckoutSessionsSchema(d database.Dialect) []string {
	orderFK := ""
	if d.Name == database.SQLite.Name {
		orderFK = ",\n\t\t\tCONSTRAINT fk_checkout_sessions_order FOREIGN KEY (order_id) REFERENCES orders (order_id)"
	}
	return expand(d, `
		CREATE TABLE IF NOT EXISTS checkout_sessions (
			checkout_session_id {{key}} PRIMARY KEY,
			shop_session_id {{key}} NOT NULL,
			customer_id {{key}},
			order_id {{bigint}},
			created_ts {{ts}} NOT NULL,
			updated_ts {{ts}} NOT NULL,
			CONSTRAINT checkout_sessions_shop_session_id_unique UNIQUE (shop_session_id),
			CONSTRAINT fk_checkout_sessions_customer FOREIGN KEY (customer_id) REFERENCES customers (customer_id)`+orderFK+`
		)
	`,
		"CREATE INDEX idx_checkout_customer ON checkout_sessions (customer_id)",
		"CREATE INDEX idx_checkout_order ON checkout_sessions (order_id)",
		"CREATE INDEX idx_checkout_created ON checkout_sessions (created_ts)",
	)
}

// GetCheckoutSessionsInsertSeqSchema adds insert_seq, a store-assigned
// counter that orders sessions sharing a created_ts. Callers may choose
// checkout_session_id, so it cannot serve as the tiebreak. SQLite has no
// non-key autoincrement; a trigger numbers each new row after the current
// maximum.
func GetCheckoutSessionsInsertSeqSchema(d database.Dialect) []string {
	switch d.Name {
	case database.Postgres.Name:
		return []string{
			"ALTER TABLE checkout_sessions ADD COLUMN insert_seq BIGSERIAL",
			"CREATE INDEX IF NOT EXISTS idx_checkout_created_seq ON checkout_sessions (created_ts, insert_seq)",
		}
	case database.MySQL.Name:
		return []string{
			"ALTER TABLE checkout_sessions ADD COLUMN insert_seq BIGINT NOT NULL AUTO_INCREMENT UNIQUE, ADD INDEX idx_checkout_created_seq (created_ts, insert_seq)",
		}
	}
	return []string{
		"ALTER TABLE checkout_sessions ADD COLUMN insert_seq INTEGER",
		"UPDATE checkout_sessions SET insert_seq = rowid WHERE insert_seq IS NULL",
		`CREATE TRIGGER IF NOT EXISTS trg_checkout_sessions_insert_seq
			AFTER INSERT ON checkout_sessions
			BEGIN
				UPDATE checkout_sessions
				SET insert_seq = (SELECT COALESCE(MAX(insert_seq), 0) + 1 FROM checkout_sessions)
				WHERE rowid = NEW.rowid;
			END`,
		"CREATE INDEX IF NOT EXISTS idx_checkout_created_seq ON checkout_sessions (created_ts, insert_seq)",
	}
}

func GetOrdersSchema(d database.Dialect) []string {
	return expand(d, `
		CREATE TABLE IF NOT EXISTS orders (
			order_id {{bigint}} PRIMARY KEY NOT NULL,
			customer_id {{key}},
			checkout_session_id {{key}},
			order_ts {{ts}} NOT NULL,
			currency {{key}} NOT NULL,
			subtotal {{money}} NOT NULL DEFAULT {{zero}},
			shipping {{money}} NOT NULL DEFAULT {{zero}},
			discount_total {{money}} NOT NULL DEFAULT {{zero}},
			tax_total {{money}} NOT NULL DEFAULT {{zero}},
			total {{money}} NOT NULL DEFAULT {{zero}},
			has_upsell {{bool}} NOT NULL DEFAULT {{false}},
			upsell_revenue {{money}} NOT NULL DEFAULT {{zero}},
			upsell_count {{int}} NOT NULL DEFAULT 0,
			CONSTRAINT fk_orders_customer FOREIGN KEY (customer_id) REFERENCES customers (customer_id),
			CONSTRAINT fk_orders_checkout_session FOREIGN KEY (checkout_session_id) REFERENCES checkout_sessions (shop_session_id)
		)
	`,
		"CREATE INDEX idx_orders_ts ON orders (order_ts)",
		"CREATE INDEX idx_orders_customer ON orders (customer_id)",
		"CREATE INDEX idx_orders_has_upsell ON orders (has_upsell)",
	)
}

func GetUpsellEventsSchema(d database.Dialect) []string {
	return expand(d, `
		CREATE TABLE IF NOT EXISTS upsell_events (
			upsell_event_id {{id}},
			order_id {{bigint}},
			checkout_session_id {{key}} NOT NULL,
			customer_id {{key}},
			upsell_version {{text}},
			strategy {{text}},
			offered_ts {{ts}} NOT NULL,
			placement {{text}} NOT NULL,
			trigger_product_id {{bigint}},
			offered_product_id {{bigint}} NOT NULL,
			offered_variant_id {{bigint}},
			offered_sku {{text}},
			offered_title {{text}},
			offered_unit_price {{money}} NOT NULL,
			decision {{key}},
			decision_ts {{ts}},
			CONSTRAINT upsell_events_decision_check CHECK (decision IN ('accepted', 'rejected', 'ignored') OR decision IS NULL),
			CONSTRAINT fk_upsell_events_order FOREIGN KEY (order_id) REFERENCES orders (order_id),
			CONSTRAINT fk_upsell_events_session FOREIGN KEY (checkout_session_id) REFERENCES checkout_sessions (shop_session_id),
			CONSTRAINT fk_upsell_events_customer FOREIGN KEY (customer_id) REFERENCES customers (customer_id),
			CONSTRAINT fk_upsell_events_trigger FOREIGN KEY (trigger_product_id) REFERENCES products (product_id),
			CONSTRAINT fk_upsell_events_offered FOREIGN KEY (offered_product_id) REFERENCES products (product_id),
			CONSTRAINT fk_upsell_events_variant FOREIGN KEY (offered_variant_id) REFERENCES product_variants (variant_id)
		)
	`,
		"CREATE INDEX idx_upsell_events_session ON upsell_events (checkout_session_id)",
		"CREATE INDEX idx_upsell_events_offered_product ON upsell_events (offered_product_id)",
		"CREATE INDEX idx_upsell_events_trigger_product ON upsell_events (trigger_product_id)",
		"CREATE INDEX idx_upsell_events_offered_ts ON upsell_events (offered_ts)",
		"CREATE INDEX idx_upsell_events_decision ON upsell_events (decision)",
	)
}

func GetOrderItemsSchema(d database.Dialect) []string {
	return expand(d, `
		CREATE TABLE IF NOT EXISTS order_items (
			order_item_id {{id}},
			order_id {{bigint}} NOT NULL,
			product_id {{bigint}} NOT NULL,
			variant_id {{bigint}},
			sku {{text}},
			title {{text}},
			image_url {{text}},
			quantity {{int}} NOT NULL DEFAULT 1,
			unit_price {{money}} NOT NULL,
			line_total {{money}} NOT NULL,
			is_upsell_item {{bool}} NOT NULL DEFAULT {{false}},
			upsell_event_id {{bigint}},
			added_ts {{ts}} NOT NULL,
			CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders (order_id),
			CONSTRAINT fk_order_items_product FOREIGN KEY (product_id) REFERENCES products (product_id),
			CONSTRAINT fk_order_items_variant FOREIGN KEY (variant_id) REFERENCES product_variants (variant_id),
			CONSTRAINT fk_order_items_upsell_event FOREIGN KEY (upsell_event_id) REFERENCES upsell_events (upsell_event_id)
		)
	`,
		"CREATE INDEX idx_order_items_order ON order_items (order_id)",
		"CREATE INDEX idx_order_items_product ON order_items (product_id)",
		"CREATE INDEX idx_order_items_variant ON order_items (variant_id)",
		"CREATE INDEX idx_order_items_isupsell ON order_items (is_upsell_item)",
	)
}

func GetUpsellAdditionsSchema(d database.Dialect) []string {
	return expand(d, `
		CREATE TABLE IF NOT EXISTS upsell_additions (
			upsell_addition_id {{id}},
			upsell_event_id {{bigint}} NOT NULL,
			order_id {{bigint}} NOT NULL,
			product_id {{bigint}} NOT NULL,
			variant_id {{bigint}},
			sku {{text}},
			image_url {{text}},
			quantity {{int}} NOT NULL DEFAULT 1,
			revenue {{money}} NOT NULL,
			added_ts {{ts}} NOT NULL,
			CONSTRAINT fk_upsell_additions_event FOREIGN KEY (upsell_event_id) REFERENCES upsell_events (upsell_event_id),
			CONSTRAINT fk_upsell_additions_order FOREIGN KEY (order_id) REFERENCES orders (order_id),
			CONSTRAINT fk_upsell_additions_product FOREIGN KEY (product_id) REFERENCES products (product_id),
			CONSTRAINT fk_upsell_additions_variant FOREIGN KEY (variant_id) REFERENCES product_variants (variant_id)
		)
	`,
		"CREATE INDEX idx_upsell_additions_order ON upsell_additions (order_id)",
		"CREATE INDEX idx_upsell_additions_product ON upsell_additions (product_id)",
		"CREATE INDEX idx_upsell_additions_event ON upsell_additions (upsell_event_id)",
	)
}

func GetUpsellRejectionsSchema(d database.Dialect) []string {
	return expand(d, `
		CREATE TABLE IF NOT EXISTS upsell_rejections (
			upsell_rejection_id {{id}},
			upsell_event_id {{bigint}} NOT NULL,
			order_id {{bigint}},
			product_id {{bigint}} NOT NULL,
			variant_id {{bigint}},
			sku {{text}},
			image_url {{text}},
			quantity {{int}} NOT NULL DEFAULT 1,
			revenue {{money}} NOT NULL,
			rejected_ts {{ts}} NOT NULL,
			CONSTRAINT fk_upsell_rejections_event FOREIGN KEY (upsell_event_id) REFERENCES upsell_events (upsell_event_id),
			CONSTRAINT fk_upsell_rejections_order FOREIGN KEY (order_id) REFERENCES orders (order_id),
			CONSTRAINT fk_upsell_rejections_product FOREIGN KEY (product_id) REFERENCES products (product_id),
			CONSTRAINT fk_upsell_rejections_variant FOREIGN KEY (variant_id) REFERENCES product_variants (variant_id)
		)
	`,
		"CREATE INDEX idx_upsell_rejections_order ON upsell_rejections (order_id)",
		"CREATE INDEX idx_upsell_rejections_product ON upsell_rejections (product_id)",
		"CREATE INDEX idx_upsell_rejections_event ON upsell_rejections (upsell_event_id)",
	)
}

func GetUpsellViewsSchema(d database.Dialect) []string {
	return expand(d, `
		CREATE TABLE IF NOT EXISTS upsell_views (
			upsell_view_id {{id}},
			upsell_event_id {{bigint}} NOT NULL,
			order_id {{bigint}},
			product_id {{bigint}} NOT NULL,
			variant_id {{bigint}},
			sku {{text}},
			image_url {{text}},
			viewed_ts {{ts}} NOT NULL,
			CONSTRAINT fk_upsell_views_event FOREIGN KEY (upsell_event_id) REFERENCES upsell_events (upsell_event_id),
			CONSTRAINT fk_upsell_views_order FOREIGN KEY (order_id) REFERENCES orders (order_id),
			CONSTRAINT fk_upsell_views_product FOREIGN KEY (product_id) REFERENCES products (product_id),
			CONSTRAINT fk_upsell_views_variant FOREIGN KEY (variant_id) REFERENCES product_variants (variant_id)
		)
	`,
		"CREATE INDEX idx_upsell_views_event ON upsell_views (upsell_event_id)",
		"CREATE INDEX idx_upsell_views_ts ON upsell_views (viewed_ts)",
	)
}

func GetSchemaMigrationsSchema(d database.Dialect) []string {
	return expand(d, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version {{int}} PRIMARY KEY,
			name {{text}} NOT NULL,
			applied_ts {{ts}} NOT NULL
		)
	`)
}

// Tables lists every table in dependency order, children last.
var Tables = []string{
	"customers",
	"products",
	"product_variants",
	"product_accessory_map",
	"product_color_match_map",
	"checkout_sessions",
	"orders",
	"upsell_events",
	"order_items",
	"upsell_additions",
	"upsell_rejections",
	"upsell_views",
}

func expand(d database.Dialect, stmts ...string) []string {
	out := make([]string, len(stmts))
	for i, stmt := range stmts {
		stmt = d.Expand(stmt)
		if d.Name != database.MySQL.Name && strings.HasPrefix(stmt, "CREATE INDEX ") {
			stmt = "CREATE INDEX IF NOT EXISTS " + strings.TrimPrefix(stmt, "CREATE INDEX ")
		}
		out[i] = stmt
	}
	return out
}
