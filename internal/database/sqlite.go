package database

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type SQLiteDriver struct {
	sqlStore
}

func NewSQLiteDriver(logger *zap.Logger) *SQLiteDriver {
	return &SQLiteDriver{sqlStore{dialect: SQLite, logger: nopIfNil(logger).Named("sqlite")}}
}

// NewSQLiteDriverFromDB wraps an already opened handle.
func NewSQLiteDriverFromDB(db *sql.DB, logger *zap.Logger) *SQLiteDriver {
	d := NewSQLiteDriver(logger)
	d.db = db
	return d
}

func (sd *SQLiteDriver) Name() string {
	return "sqlite"
}

// Connect opens dsn with foreign keys enforced. SQLite allows a single
// writer, and an in-memory database lives on one connection, so the pool is
// capped at one.
func (sd *SQLiteDriver) Connect(ctx context.Context, dsn string) error {
	db, err := sql.Open("sqlite", withForeignKeys(dsn))
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return NewStoreError(CodeStoreUnavailable, "sqlite open failed", err)
	}
	sd.db = db
	sd.logger.Info("connected", zap.String("dsn", dsn))
	return nil
}

func (sd *SQLiteDriver) Reset(ctx context.Context) error {
	n, err := sd.dropTables(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'",
		"PRAGMA foreign_keys = OFF",
		"PRAGMA foreign_keys = ON",
		func(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` },
	)
	if err != nil {
		return err
	}
	sd.logger.Info("database reset", zap.Int("tables_dropped", n))
	return nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}
