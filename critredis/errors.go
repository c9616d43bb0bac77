package critredis

import (
	"errors"
	"net"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/lemmego/criteria"
)

// convertRedisError converts Redis errors to repository errors
func convertRedisError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return criteria.NewErrorWithCause(criteria.ErrorTypeNotFound, "key not found", err)
	}
	if errors.Is(err, redis.TxFailedErr) {
		return criteria.NewErrorWithCause(criteria.ErrorTypeTransaction, "transaction failed", err)
	}
	if errors.Is(err, redis.ErrClosed) {
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "client is closed", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "network error", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection"), strings.HasPrefix(msg, "noauth"), strings.HasPrefix(msg, "loading"):
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "connection error", err)
	case strings.HasPrefix(msg, "wrongtype"):
		return criteria.NewErrorWithCause(criteria.ErrorTypeSerialization, "unexpected value type", err)
	}
	return criteria.NewErrorWithCause(criteria.ErrorTypeDatabase, "database operation failed", err)
}
