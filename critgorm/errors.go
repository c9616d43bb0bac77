package critgorm

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/lemmego/criteria"
)

// convertGormError converts GORM errors to repository errors
func convertGormError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return criteria.NewErrorWithCause(criteria.ErrorTypeNotFound, "record not found", err)
	case errors.Is(err, gorm.ErrInvalidTransaction):
		return criteria.NewErrorWithCause(criteria.ErrorTypeTransaction, "invalid transaction", err)
	case errors.Is(err, gorm.ErrNotImplemented), errors.Is(err, gorm.ErrUnsupportedRelation):
		return criteria.NewErrorWithCause(criteria.ErrorTypeUnsupported, "operation not supported", err)
	case errors.Is(err, gorm.ErrMissingWhereClause):
		return criteria.NewErrorWithCause(criteria.ErrorTypeValidation, "missing where clause", err)
	case errors.Is(err, gorm.ErrPrimaryKeyRequired):
		return criteria.NewErrorWithCause(criteria.ErrorTypeValidation, "primary key required", err)
	case errors.Is(err, gorm.ErrModelValueRequired), errors.Is(err, gorm.ErrInvalidData):
		return criteria.NewErrorWithCause(criteria.ErrorTypeValidation, "invalid model value", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return criteria.NewErrorWithCause(criteria.ErrorTypeDuplicate, "duplicate key violation", err)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "duplicate") || strings.Contains(errStr, "unique"):
		return criteria.NewErrorWithCause(criteria.ErrorTypeDuplicate, "duplicate key violation", err)
	case strings.Contains(errStr, "connection"):
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "connection error", err)
	default:
		return criteria.NewErrorWithCause(criteria.ErrorTypeDatabase, "database operation failed", err)
	}
}
