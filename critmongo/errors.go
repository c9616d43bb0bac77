package critmongo

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lemmego/criteria"
)

// =====================================
// Error Conversion
// =====================================

// convertMongoError converts MongoDB errors to repository errors
func convertMongoError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return criteria.NewErrorWithCause(criteria.ErrorTypeNotFound, "document not found", err)
	case errors.Is(err, mongo.ErrNilDocument), errors.Is(err, mongo.ErrNilValue):
		return criteria.NewErrorWithCause(criteria.ErrorTypeInvalidArgument, "nil document provided", err)
	case errors.Is(err, mongo.ErrClientDisconnected):
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "client disconnected", err)
	case mongo.IsDuplicateKeyError(err):
		return criteria.NewErrorWithCause(criteria.ErrorTypeDuplicate, "duplicate key violation", err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "connection error", err)
	}

	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == 121 { // DocumentValidationFailure
				return criteria.NewErrorWithCause(criteria.ErrorTypeValidation, "document validation failed", err)
			}
		}
	}

	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) {
		for _, we := range bulkErr.WriteErrors {
			if we.Code == 121 {
				return criteria.NewErrorWithCause(criteria.ErrorTypeValidation, "document validation failed in bulk write", err)
			}
		}
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 13, 18: // Unauthorized, AuthenticationFailed
			return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "authentication failed", err)
		case 244, 251: // TransactionTooOld, NoSuchTransaction
			return criteria.NewErrorWithCause(criteria.ErrorTypeTransaction, "transaction aborted", err)
		case 40324: // unrecognized pipeline stage
			return criteria.NewErrorWithCause(criteria.ErrorTypeInvalidArgument, "invalid pipeline", err)
		}
	}

	if strings.Contains(strings.ToLower(err.Error()), "connection") {
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "connection error", err)
	}
	return criteria.NewErrorWithCause(criteria.ErrorTypeDatabase, "database operation failed", err)
}
