package database

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
)

// sqlStore is the database/sql plumbing shared by the MySQL and SQLite
// drivers.
type sqlStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *sqlStore) Dialect() Dialect {
	return s.dialect
}

// DB exposes the underlying handle, mainly for tests.
func (s *sqlStore) DB() *sql.DB {
	return s.db
}

func (s *sqlStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Info("closing connection")
	return s.db.Close()
}

func (s *sqlStore) ExecuteTx(ctx context.Context, txFunc func(ctx context.Context) error) (err error) {
	if _, ok := txFrom(ctx).(*sql.Tx); ok {
		return txFunc(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		} else {
			err = classify(tx.Commit())
		}
	}()

	err = txFunc(withTx(ctx, tx))
	return err
}

func (s *sqlStore) querier(ctx context.Context) sqlQuerier {
	if tx, ok := txFrom(ctx).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func (s *sqlStore) ExecContext(ctx context.Context, query string, args ...interface{}) (ExecResult, error) {
	res, err := s.querier(ctx).ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return ExecResult{}, classify(err)
	}
	var out ExecResult
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return ExecResult{}, classify(err)
	}
	// Not every statement yields an insert id; zero is fine there.
	out.LastInsertID, _ = res.LastInsertId()
	return out, nil
}

func (s *sqlStore) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, classify(err)
	}
	return &sqlRows{rows: rows, logger: s.logger}, nil
}

func (s *sqlStore) QueryRowContext(ctx context.Context, query string, args ...interface{}) Row {
	return &classifiedRow{row: s.querier(ctx).QueryRowContext(ctx, s.dialect.Rebind(query), args...)}
}

// dropTables drops every table on a single connection with foreign key
// enforcement switched off around the drops.
func (s *sqlStore) dropTables(ctx context.Context, listQuery, disableFK, enableFK string, quote func(string) string) (int, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, classify(err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, listQuery)
	if err != nil {
		return 0, classify(err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return 0, classify(err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, classify(err)
	}

	if _, err := conn.ExecContext(ctx, disableFK); err != nil {
		return 0, classify(err)
	}
	defer func() {
		if _, err := conn.ExecContext(ctx, enableFK); err != nil {
			s.logger.Warn("failed to re-enable foreign keys", zap.Error(err))
		}
	}()

	for _, table := range tables {
		if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(table)); err != nil {
			return 0, classify(err)
		}
	}
	return len(tables), nil
}

type sqlRows struct {
	rows   *sql.Rows
	logger *zap.Logger
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest ...interface{}) error {
	return classify(r.rows.Scan(dest...))
}

func (r *sqlRows) Close() {
	if err := r.rows.Close(); err != nil {
		r.logger.Debug("rows close failed", zap.Error(err))
	}
}

func (r *sqlRows) Err() error {
	return classify(r.rows.Err())
}
