package database

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PostgresDriver struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func NewPostgresDriver(logger *zap.Logger) *PostgresDriver {
	return &PostgresDriver{logger: nopIfNil(logger).Named("postgres")}
}

func (pd *PostgresDriver) Name() string {
	return "postgres"
}

func (pd *PostgresDriver) Dialect() Dialect {
	return Postgres
}

func (pd *PostgresDriver) Connect(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return classify(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return NewStoreError(CodeStoreUnavailable, "postgres ping failed", err)
	}
	pd.pool = pool
	pd.logger.Info("connected", zap.String("database", pool.Config().ConnConfig.Database))
	return nil
}

func (pd *PostgresDriver) Close() error {
	if pd.pool != nil {
		pd.pool.Close()
		pd.logger.Info("connection pool closed")
	}
	return nil
}

func (pd *PostgresDriver) Reset(ctx context.Context) error {
	rows, err := pd.pool.Query(ctx, "SELECT tablename FROM pg_tables WHERE schemaname = 'public'")
	if err != nil {
		return classify(err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return classify(err)
	}

	for _, tableName := range tables {
		_, err = pd.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pgx.Identifier{tableName}.Sanitize()))
		if err != nil {
			return classify(err)
		}
	}
	pd.logger.Info("database reset", zap.Int("tables_dropped", len(tables)))
	return nil
}

func (pd *PostgresDriver) ExecuteTx(ctx context.Context, txFunc func(ctx context.Context) error) (err error) {
	if _, ok := txFrom(ctx).(pgx.Tx); ok {
		return txFunc(ctx)
	}

	tx, err := pd.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p) // re-panic after rollback
		} else if err != nil {
			_ = tx.Rollback(ctx) // err is non-nil; don't change it
		} else {
			err = classify(tx.Commit(ctx)) // err is nil; if Commit returns error, update err
		}
	}()

	err = txFunc(withTx(ctx, tx))
	return err
}

func (pd *PostgresDriver) querier(ctx context.Context) pgxQuerier {
	if tx, ok := txFrom(ctx).(pgx.Tx); ok {
		return tx
	}
	return pd.pool
}

func (pd *PostgresDriver) ExecContext(ctx context.Context, query string, args ...interface{}) (ExecResult, error) {
	tag, err := pd.querier(ctx).Exec(ctx, Postgres.Rebind(query), pgArgs(args)...)
	if err != nil {
		return ExecResult{}, classify(err)
	}
	return ExecResult{RowsAffected: tag.RowsAffected()}, nil
}

func (pd *PostgresDriver) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := pd.querier(ctx).Query(ctx, Postgres.Rebind(query), pgArgs(args)...)
	if err != nil {
		return nil, classify(err)
	}
	return &pgRows{Rows: rows}, nil
}

func (pd *PostgresDriver) QueryRowContext(ctx context.Context, query string, args ...interface{}) Row {
	return &classifiedRow{row: pd.querier(ctx).QueryRow(ctx, Postgres.Rebind(query), pgArgs(args)...)}
}

// pgArgs resolves driver.Valuer arguments (decimals in particular) up front
// so pgx encodes them as text for any column type.
func pgArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, arg := range args {
		if v, ok := arg.(driver.Valuer); ok {
			if value, err := v.Value(); err == nil {
				out[i] = value
				continue
			}
		}
		out[i] = arg
	}
	return out
}

type pgRows struct {
	pgx.Rows
}

func (r *pgRows) Scan(dest ...interface{}) error {
	return classify(r.Rows.Scan(dest...))
}

func (r *pgRows) Err() error {
	return classify(r.Rows.Err())
}

type classifiedRow struct {
	row Row
}

func (r *classifiedRow) Scan(dest ...interface{}) error {
	return classify(r.row.Scan(dest...))
}
