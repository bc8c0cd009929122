package commerce

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

type Migration struct {
	Version    int
	Name       string
	Statements func(d database.Dialect) []string
}

// Migrations is append-only. Each entry runs once per database, inside a
// transaction where the engine allows transactional DDL.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create_commerce_tables",
		Statements: func(d database.Dialect) []string {
			var stmts []string
			for _, schema := range [][]string{
				GetCustomersSchema(d),
				GetProductsSchema(d),
				GetProductVariantsSchema(d),
				GetProductAccessoryMapSchema(d),
				GetProductColorMatchMapSchema(d),
				GetCheckoutSessionsSchema(d),
				GetOrdersSchema(d),
				GetUpsellEventsSchema(d),
				GetOrderItemsSchema(d),
				GetUpsellAdditionsSchema(d),
				GetUpsellRejectionsSchema(d),
				GetUpsellViewsSchema(d),
			} {
				stmts = append(stmts, schema...)
			}
			return stmts
		},
	},
	{
		Version: 2,
		Name:    "checkout_sessions_order_fk",
		Statements: func(d database.Dialect) []string {
			if d.Name == database.SQLite.Name {
				return nil
			}
			return []string{
				"ALTER TABLE checkout_sessions ADD CONSTRAINT fk_checkout_sessions_order FOREIGN KEY (order_id) REFERENCES orders (order_id)",
			}
		},
	},
	{
		Version:    3,
		Name:       "checkout_sessions_insert_seq",
		Statements: GetCheckoutSessionsInsertSeqSchema,
	},
}

// Migrate brings the schema up to date. Versions already recorded in
// schema_migrations are skipped, so calling it repeatedly is safe.
func Migrate(ctx context.Context, db database.SQLDriver, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, stmt := range GetSchemaMigrationsSchema(db.Dialect()) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema_migrations: %w", err)
		}
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range Migrations {
		if applied[m.Version] {
			continue
		}
		err := db.ExecuteTx(ctx, func(ctx context.Context) error {
			for _, stmt := range m.Statements(db.Dialect()) {
				if db.Dialect().Name == database.MySQL.Name {
					exists, err := mysqlObjectExists(ctx, db, stmt)
					if err != nil {
						return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
					}
					if exists {
						logger.Info("schema object already present", zap.Int("version", m.Version), zap.String("statement", stmt))
						continue
					}
				}
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
				}
			}
			_, err := db.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, name, applied_ts) VALUES (?, ?, ?)",
				m.Version, m.Name, models.Now())
			return err
		})
		if err != nil {
			logger.Error("migration failed", zap.Int("version", m.Version), zap.String("name", m.Name), zap.Error(err))
			return err
		}
		logger.Info("migration applied", zap.Int("version", m.Version), zap.String("name", m.Name))
	}
	return nil
}

func appliedVersions(ctx context.Context, db database.SQLDriver) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// SchemaVersion reports the highest applied migration, or 0.
func SchemaVersion(ctx context.Context, db database.SQLDriver) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

var (
	createIndexStmt   = regexp.MustCompile(`^CREATE INDEX (\w+) ON (\w+)`)
	addConstraintStmt = regexp.MustCompile(`^ALTER TABLE (\w+) ADD CONSTRAINT (\w+)`)
	addColumnStmt     = regexp.MustCompile(`^ALTER TABLE (\w+) ADD COLUMN (\w+)`)
)

// mysqlObjectExists reports whether the index, constraint or column stmt
// would create is already there. MySQL commits each DDL statement on its
// own, so a migration that failed halfway leaves these behind and a retry
// must step over them.
func mysqlObjectExists(ctx context.Context, db database.SQLDriver, stmt string) (bool, error) {
	var query string
	var match []string
	switch {
	case createIndexStmt.MatchString(stmt):
		m := createIndexStmt.FindStringSubmatch(stmt)
		query = "SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?"
		match = []string{m[2], m[1]}
	case addConstraintStmt.MatchString(stmt):
		match = addConstraintStmt.FindStringSubmatch(stmt)[1:]
		query = "SELECT COUNT(*) FROM information_schema.table_constraints WHERE constraint_schema = DATABASE() AND table_name = ? AND constraint_name = ?"
	case addColumnStmt.MatchString(stmt):
		match = addColumnStmt.FindStringSubmatch(stmt)[1:]
		query = "SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?"
	default:
		return false, nil
	}
	var n int
	if err := db.QueryRowContext(ctx, query, match[0], match[1]).Scan(&n); err != nil {
		return false, fmt.Errorf("inspect schema: %w", err)
	}
	return n > 0, nil
}
