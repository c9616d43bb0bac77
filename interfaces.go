package criteria

import "context"

// =====================================
// Core Repository Interfaces
// =====================================

// Repository persists and queries entities of type T. Queries are expressed
// as Criteria and translated by the repository's Registry.
type Repository[T any] interface {
	// Save checks the invariants of every entity and then inserts or updates
	// them in a single unit of work. An invariant violation is returned as is
	// and nothing is written.
	Save(ctx context.Context, entities ...*T) error

	// Remove deletes the given entities.
	Remove(ctx context.Context, entities ...*T) error

	// RemoveByID deletes the entities with the given ids in one statement.
	// Unknown ids are ignored.
	RemoveByID(ctx context.Context, ids ...any) error

	// Get retrieves a single entity by its id.
	// Returns ErrorTypeNotFound if the entity doesn't exist.
	Get(ctx context.Context, id any) (*T, error)

	// Find returns the entities matching c, ordered and paginated by opts.
	// Example: people, err := Find(ctx, criteria.AllOf(NameEquals.Of("Ann"), criteria.Not(AgeGreaterThan.Of(30))), criteria.Limit(10))
	Find(ctx context.Context, c Criteria, opts ...FindOption) ([]*T, error)

	// Exists reports whether at least one entity matches c.
	Exists(ctx context.Context, c Criteria) (bool, error)
}
