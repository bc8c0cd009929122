package commerce

import (
	"context"
	"errors"
	"fmt"

	"upsell-tracker/internal/database"
)

// insertID runs an INSERT and returns the generated key, using RETURNING
// where the dialect has it and the driver's last insert id elsewhere.
func insertID(ctx context.Context, db database.SQLDriver, query, idColumn string, args ...interface{}) (int64, error) {
	if db.Dialect().Returning {
		var id int64
		if err := db.QueryRowContext(ctx, query+" RETURNING "+idColumn, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

func notFound(format string, args ...interface{}) error {
	return database.NewStoreError(database.CodeNotFound, fmt.Sprintf(format, args...), nil)
}

// wrapGet converts an absent row into a descriptive not-found error and
// wraps anything else with op.
func wrapGet(err error, op, what string) error {
	if errors.Is(err, database.ErrNotFound) {
		return notFound("%s not found", what)
	}
	return fmt.Errorf("%s: %w", op, err)
}
