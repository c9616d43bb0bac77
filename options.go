package criteria

import "go.uber.org/zap"

// RepositoryOptions holds the settings shared by every adapter repository.
type RepositoryOptions struct {
	// Name identifies the repository in errors, logs and spans.
	Name string
	// Logger receives operation logs. Defaults to a no-op logger.
	Logger *zap.Logger
	// IDField is the primary key column or field. Defaults to "id".
	IDField string
}

// RepositoryOption configures RepositoryOptions.
type RepositoryOption func(*RepositoryOptions)

// WithName sets the repository identity.
func WithName(name string) RepositoryOption {
	return func(o *RepositoryOptions) { o.Name = name }
}

// WithLogger sets the repository logger.
func WithLogger(logger *zap.Logger) RepositoryOption {
	return func(o *RepositoryOptions) { o.Logger = logger }
}

// WithIDField sets the primary key column or field.
func WithIDField(field string) RepositoryOption {
	return func(o *RepositoryOptions) { o.IDField = field }
}

// ResolveOptions applies opts over the defaults. defaultName is used when no
// WithName option is given, typically the registry name.
func ResolveOptions(defaultName string, opts ...RepositoryOption) RepositoryOptions {
	o := RepositoryOptions{
		Name:    defaultName,
		IDField: "id",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.IDField == "" {
		o.IDField = "id"
	}
	return o
}
