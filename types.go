package criteria

// =====================================
// Core Types and Constants
// =====================================

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeUnknownCriteria   ErrorType = "unknown_criteria"
	ErrorTypeMalformedCriteria ErrorType = "malformed_criteria"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeDuplicate         ErrorType = "duplicate"
	ErrorTypeConnection        ErrorType = "connection"
	ErrorTypeTransaction       ErrorType = "transaction"
	ErrorTypeUnsupported       ErrorType = "unsupported"
	ErrorTypeSerialization     ErrorType = "serialization"
	ErrorTypeInvalidArgument   ErrorType = "invalid_argument"
	ErrorTypeDatabase          ErrorType = "database"
)

// DatabaseType represents the type of database behind a provider
type DatabaseType string

const (
	DatabaseTypeSQL      DatabaseType = "sql"
	DatabaseTypeDocument DatabaseType = "document"
	DatabaseTypeKV       DatabaseType = "key-value"
	DatabaseTypeMemory   DatabaseType = "memory"
)

// ProviderInfo contains information about a provider
type ProviderInfo struct {
	Name         string
	Version      string
	DatabaseType DatabaseType
	Dialect      string
}

// OrderDirection represents sort direction
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// Order represents sorting order
type Order struct {
	Field     string
	Direction OrderDirection
}

// Desc reports whether the order is descending.
func (o Order) Desc() bool {
	return o.Direction == OrderDesc
}
