package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"upsell-tracker/internal/models"
)

type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"
	CodeStoreUnavailable    Code = "STORE_UNAVAILABLE"
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeInternal            Code = "INTERNAL"
)

// StoreError is the error type every driver returns. Compare against the
// sentinels below with errors.Is.
type StoreError struct {
	code    Code
	message string
	err     error
}

var (
	ErrNotFound            = &StoreError{code: CodeNotFound, message: "not found"}
	ErrConstraintViolation = &StoreError{code: CodeConstraintViolation, message: "constraint violation"}
	ErrStoreUnavailable    = &StoreError{code: CodeStoreUnavailable, message: "store unavailable"}
)

func NewStoreError(code Code, message string, err error) *StoreError {
	return &StoreError{code: code, message: message, err: err}
}

func (e *StoreError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.message, e.err.Error())
	}
	return e.message
}

func (e *StoreError) Code() Code {
	return e.code
}

func (e *StoreError) Unwrap() error {
	return e.err
}

func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.err == nil && t.code == e.code
}

// CodeOf reports the store code of err, or CodeInternal.
func CodeOf(err error) Code {
	var se *StoreError
	if errors.As(err, &se) {
		return se.code
	}
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return CodeConstraintViolation
	}
	if errors.Is(err, models.ErrInvalid) {
		return CodeInvalidArgument
	}
	return CodeInternal
}

type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintNotNull    ConstraintKind = "not_null"
)

// ConstraintError is a write the store rejected on integrity grounds.
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("%s constraint violation", e.Kind)
	if e.Constraint != "" {
		msg += " on " + e.Constraint
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraintViolation
}

// IsConflict reports whether err is a uniqueness violation, the case HTTP
// callers answer with 409.
func IsConflict(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce) && ce.Kind == ConstraintUnique
}

// NewUniqueViolation builds the error writers return for uniqueness rules
// the schema cannot express.
func NewUniqueViolation(constraint string, err error) error {
	return &ConstraintError{Kind: ConstraintUnique, Constraint: constraint, Err: err}
}

// Classify exposes the store taxonomy to packages that talk to a
// client library directly.
func Classify(err error) error {
	return classify(err)
}

// classify maps engine errors onto the store taxonomy. Errors already
// classified pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	var ce *ConstraintError
	if errors.As(err, &se) || errors.As(err, &ce) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, mongo.ErrNoDocuments) {
		return NewStoreError(CodeNotFound, "not found", err)
	}
	if c := constraintFrom(err); c != nil {
		return c
	}
	if unavailable(err) {
		return NewStoreError(CodeStoreUnavailable, "store unavailable", err)
	}
	return err
}

func constraintFrom(err error) *ConstraintError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &ConstraintError{Kind: ConstraintUnique, Constraint: pgErr.ConstraintName, Err: err}
		case "23503":
			return &ConstraintError{Kind: ConstraintForeignKey, Constraint: pgErr.ConstraintName, Err: err}
		case "23514":
			return &ConstraintError{Kind: ConstraintCheck, Constraint: pgErr.ConstraintName, Err: err}
		case "23502":
			return &ConstraintError{Kind: ConstraintNotNull, Constraint: pgErr.ColumnName, Err: err}
		}
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return &ConstraintError{Kind: ConstraintUnique, Constraint: quotedAfter(myErr.Message, "for key "), Err: err}
		case 1451, 1452:
			return &ConstraintError{Kind: ConstraintForeignKey, Constraint: quotedAfter(myErr.Message, "CONSTRAINT "), Err: err}
		case 3819:
			return &ConstraintError{Kind: ConstraintCheck, Constraint: quotedAfter(myErr.Message, "Check constraint "), Err: err}
		case 1048, 1364:
			return &ConstraintError{Kind: ConstraintNotNull, Constraint: quotedAfter(myErr.Message, "Column "), Err: err}
		}
		return nil
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code&0xff != sqlite3.SQLITE_CONSTRAINT {
			return nil
		}
		msg := liteErr.Error()
		constraint := ""
		if i := strings.LastIndex(msg, "constraint failed: "); i >= 0 {
			constraint = strings.TrimSpace(msg[i+len("constraint failed: "):])
			if j := strings.IndexByte(constraint, ' '); j >= 0 {
				constraint = constraint[:j]
			}
		}
		switch {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			strings.Contains(msg, "UNIQUE constraint failed"):
			return &ConstraintError{Kind: ConstraintUnique, Constraint: constraint, Err: err}
		case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY || strings.Contains(msg, "FOREIGN KEY constraint failed"):
			return &ConstraintError{Kind: ConstraintForeignKey, Constraint: constraint, Err: err}
		case code == sqlite3.SQLITE_CONSTRAINT_CHECK || strings.Contains(msg, "CHECK constraint failed"):
			return &ConstraintError{Kind: ConstraintCheck, Constraint: constraint, Err: err}
		case code == sqlite3.SQLITE_CONSTRAINT_NOTNULL || strings.Contains(msg, "NOT NULL constraint failed"):
			return &ConstraintError{Kind: ConstraintNotNull, Constraint: constraint, Err: err}
		}
		return &ConstraintError{Kind: ConstraintCheck, Constraint: constraint, Err: err}
	}

	var writeErr mongo.WriteException
	if mongo.IsDuplicateKeyError(err) {
		constraint := ""
		if errors.As(err, &writeErr) && len(writeErr.WriteErrors) > 0 {
			constraint = quotedAfter(writeErr.WriteErrors[0].Message, "index: ")
		}
		return &ConstraintError{Kind: ConstraintUnique, Constraint: constraint, Err: err}
	}
	return nil
}

func unavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN:
			return true
		}
	}
	return false
}

// quotedAfter extracts the first quoted identifier following marker, e.g.
// the key name from "Duplicate entry 'x' for key 'products.sku'".
func quotedAfter(msg, marker string) string {
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if rest == "" {
		return ""
	}
	switch rest[0] {
	case '\'', '`', '"':
		q := rest[0]
		if j := strings.IndexByte(rest[1:], q); j >= 0 {
			return rest[1 : j+1]
		}
	}
	if j := strings.IndexAny(rest, " ,)"); j >= 0 {
		return rest[:j]
	}
	return rest
}
