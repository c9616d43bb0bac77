package critbun

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lemmego/criteria"
)

// convertBunError converts Bun and driver errors to repository errors
func convertBunError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return criteria.NewErrorWithCause(criteria.ErrorTypeNotFound, "record not found", err)
	case strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique"):
		return criteria.NewErrorWithCause(criteria.ErrorTypeDuplicate, "duplicate key violation", err)
	case errors.Is(err, sql.ErrTxDone):
		return criteria.NewErrorWithCause(criteria.ErrorTypeTransaction, "transaction already finished", err)
	case strings.Contains(msg, "connection") || errors.Is(err, sql.ErrConnDone):
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "connection error", err)
	default:
		return criteria.NewErrorWithCause(criteria.ErrorTypeDatabase, "database operation failed", err)
	}
}
