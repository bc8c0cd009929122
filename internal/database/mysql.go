package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

type MySQLDriver struct {
	sqlStore
}

func NewMySQLDriver(logger *zap.Logger) *MySQLDriver {
	return &MySQLDriver{sqlStore{dialect: MySQL, logger: nopIfNil(logger).Named("mysql")}}
}

// NewMySQLDriverFromDB wraps an already opened handle.
func NewMySQLDriverFromDB(db *sql.DB, logger *zap.Logger) *MySQLDriver {
	d := NewMySQLDriver(logger)
	d.db = db
	return d
}

func (md *MySQLDriver) Name() string {
	return "mysql"
}

func (md *MySQLDriver) Connect(ctx context.Context, dsn string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return err
	}
	// Report matched rather than changed rows so an UPDATE that rewrites
	// identical values is not mistaken for a missing row.
	cfg.ClientFoundRows = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return err
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return NewStoreError(CodeStoreUnavailable, "mysql ping failed", err)
	}
	md.db = db
	md.logger.Info("connected", zap.String("database", cfg.DBName), zap.String("addr", cfg.Addr))
	return nil
}

func (md *MySQLDriver) Reset(ctx context.Context) error {
	n, err := md.dropTables(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE()",
		"SET FOREIGN_KEY_CHECKS = 0",
		"SET FOREIGN_KEY_CHECKS = 1",
		func(name string) string { return "`" + strings.ReplaceAll(name, "`", "``") + "`" },
	)
	if err != nil {
		return err
	}
	md.logger.Info("database reset", zap.Int("tables_dropped", n))
	return nil
}
