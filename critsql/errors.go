package critsql

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/lemmego/criteria"
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
)

// convertSQLError converts driver errors to repository errors
func convertSQLError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return criteria.NewErrorWithCause(criteria.ErrorTypeNotFound, "record not found", err)
	}
	if errors.Is(err, sql.ErrTxDone) {
		return criteria.NewErrorWithCause(criteria.ErrorTypeTransaction, "transaction already finished", err)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "connection closed", err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return criteria.NewErrorWithCause(criteria.ErrorTypeDuplicate, "duplicate key violation", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return criteria.NewErrorWithCause(criteria.ErrorTypeDuplicate, "duplicate key violation", err)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return criteria.NewErrorWithCause(criteria.ErrorTypeDuplicate, "duplicate key violation", err)
		case mysqlLockWaitTimeout:
			return criteria.NewErrorWithCause(criteria.ErrorTypeTransaction, "lock wait timeout", err)
		}
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return criteria.NewErrorWithCause(criteria.ErrorTypeDuplicate, "duplicate key violation", err)
		}
	}

	if strings.Contains(strings.ToLower(err.Error()), "connection") {
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "connection error", err)
	}
	return criteria.NewErrorWithCause(criteria.ErrorTypeDatabase, "database operation failed", err)
}
