package critmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lemmego/criteria"
	"github.com/lemmego/criteria/internal/telemetry"
)

// IDFunc returns the key of an entity.
type IDFunc[T any] func(entity *T) string

// Repository implements criteria.Repository over a guarded map. Entities are
// stored and returned as shallow copies.
type Repository[T any] struct {
	mu        sync.RWMutex
	items     map[string]T
	registry  *Registry[T]
	id        IDFunc[T]
	orderings Orderings[T]
	opts      criteria.RepositoryOptions
}

var _ criteria.Repository[struct{}] = (*Repository[struct{}])(nil)

// NewRepository creates an empty in-memory repository.
func NewRepository[T any](registry *Registry[T], id IDFunc[T], orderings Orderings[T], opts ...criteria.RepositoryOption) *Repository[T] {
	if orderings == nil {
		orderings = Orderings[T]{}
	}
	return &Repository[T]{
		items:     make(map[string]T),
		registry:  registry,
		id:        id,
		orderings: orderings,
		opts:      criteria.ResolveOptions(registry.Name(), opts...),
	}
}

// Save stores copies of entities after checking their invariants.
func (r *Repository[T]) Save(ctx context.Context, entities ...*T) (err error) {
	_, done := r.observe(ctx, "save", nil)
	defer func() { done(err) }()

	if err := criteria.CheckInvariants(ctx, entities...); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entity := range entities {
		r.items[r.id(entity)] = *entity
	}
	return nil
}

// Remove deletes the given entities.
func (r *Repository[T]) Remove(ctx context.Context, entities ...*T) (err error) {
	_, done := r.observe(ctx, "remove", nil)
	defer func() { done(err) }()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entity := range entities {
		if entity == nil {
			return criteria.NewError(criteria.ErrorTypeInvalidArgument, "nil entity")
		}
		delete(r.items, r.id(entity))
	}
	return nil
}

// RemoveByID deletes the entities with the given ids.
func (r *Repository[T]) RemoveByID(ctx context.Context, ids ...any) (err error) {
	_, done := r.observe(ctx, "remove_by_id", nil)
	defer func() { done(err) }()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.items, fmt.Sprint(id))
	}
	return nil
}

// Get returns a copy of the entity stored under id.
func (r *Repository[T]) Get(ctx context.Context, id any) (_ *T, err error) {
	ctx, done := r.observe(ctx, "get", nil)
	defer func() { done(err) }()

	r.mu.RLock()
	item, ok := r.items[fmt.Sprint(id)]
	r.mu.RUnlock()
	if !ok {
		return nil, criteria.NewError(criteria.ErrorTypeNotFound, fmt.Sprintf("entity %v not found", id))
	}

	entity := item
	if err := criteria.AfterLoad(ctx, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// Find returns copies of the entities matching c.
func (r *Repository[T]) Find(ctx context.Context, c criteria.Criteria, opts ...criteria.FindOption) (_ []*T, err error) {
	ctx, done := r.observe(ctx, "find", c)
	defer func() { done(err) }()

	plan, pred, err := Compile(r.registry, c)
	if err != nil {
		return nil, err
	}

	result, err := Select(r.candidates(plan), pred, criteria.NewFindQuery(opts...), r.orderings)
	if err != nil {
		return nil, err
	}
	if err := criteria.AfterLoad(ctx, result...); err != nil {
		return nil, err
	}
	return result, nil
}

// Exists reports whether any stored entity matches c.
func (r *Repository[T]) Exists(ctx context.Context, c criteria.Criteria) (_ bool, err error) {
	_, done := r.observe(ctx, "exists", c)
	defer func() { done(err) }()

	plan, pred, err := Compile(r.registry, c)
	if err != nil {
		return false, err
	}
	for _, entity := range r.candidates(plan) {
		if pred(entity) {
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of stored entities.
func (r *Repository[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// candidates copies the entities allowed by plan in key order, so results
// are deterministic before any ordering is applied.
func (r *Repository[T]) candidates(plan Plan) []*T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.items))
	for key := range r.items {
		if plan.Allows(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := make([]*T, 0, len(keys))
	for _, key := range keys {
		entity := r.items[key]
		out = append(out, &entity)
	}
	return out
}

func (r *Repository[T]) observe(ctx context.Context, op string, c criteria.Criteria) (context.Context, func(error)) {
	ctx, span := telemetry.Start(ctx, "memory", r.opts.Name, op)
	started := time.Now()
	return ctx, func(err error) {
		telemetry.End(span, err)
		criteria.LogOperation(r.opts.Logger, r.opts.Name, op, c, started, err)
	}
}
