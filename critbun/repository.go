package critbun

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/uptrace/bun"

	"github.com/lemmego/criteria"
	"github.com/lemmego/criteria/internal/telemetry"
)

// =====================================
// Repository Implementation
// =====================================

// Repository implements criteria.Repository for Bun models of type T. T must
// carry bun struct tags with a primary key.
type Repository[T any] struct {
	db       bun.IDB
	registry *Registry
	opts     criteria.RepositoryOptions
}

var _ criteria.Repository[struct{}] = (*Repository[struct{}])(nil)

// NewRepository creates a repository on db, which may be a *bun.DB or a bun.Tx.
func NewRepository[T any](db bun.IDB, registry *Registry, opts ...criteria.RepositoryOption) *Repository[T] {
	return &Repository[T]{
		db:       db,
		registry: registry,
		opts:     criteria.ResolveOptions(registry.Name(), opts...),
	}
}

// Save updates each entity by primary key, inserting it when no row exists.
// All entities are written in one transaction.
func (r *Repository[T]) Save(ctx context.Context, entities ...*T) (err error) {
	ctx, done := r.observe(ctx, "save", nil)
	defer func() { done(err) }()

	if err := criteria.CheckInvariants(ctx, entities...); err != nil {
		return err
	}
	if len(entities) == 0 {
		return nil
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, entity := range entities {
			exists, err := tx.NewSelect().Model(entity).WherePK().Exists(ctx)
			if err != nil {
				return convertBunError(err)
			}
			if exists {
				_, err = tx.NewUpdate().Model(entity).WherePK().Exec(ctx)
			} else {
				_, err = tx.NewInsert().Model(entity).Exec(ctx)
			}
			if err != nil {
				return convertBunError(err)
			}
		}
		return nil
	})
}

// Remove deletes the given entities by primary key.
func (r *Repository[T]) Remove(ctx context.Context, entities ...*T) (err error) {
	ctx, done := r.observe(ctx, "remove", nil)
	defer func() { done(err) }()

	for _, entity := range entities {
		if entity == nil {
			return criteria.NewError(criteria.ErrorTypeInvalidArgument, "nil entity")
		}
	}
	if len(entities) == 0 {
		return nil
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, entity := range entities {
			if _, err := tx.NewDelete().Model(entity).WherePK().Exec(ctx); err != nil {
				return convertBunError(err)
			}
		}
		return nil
	})
}

// RemoveByID deletes the rows whose primary key is one of ids.
func (r *Repository[T]) RemoveByID(ctx context.Context, ids ...any) (err error) {
	ctx, done := r.observe(ctx, "remove_by_id", nil)
	defer func() { done(err) }()

	if len(ids) == 0 {
		return nil
	}
	_, err = r.db.NewDelete().
		Model((*T)(nil)).
		Where("? IN (?)", bun.Ident(r.opts.IDField), bun.In(ids)).
		Exec(ctx)
	return convertBunError(err)
}

// Get loads the entity whose primary key is id.
func (r *Repository[T]) Get(ctx context.Context, id any) (_ *T, err error) {
	ctx, done := r.observe(ctx, "get", nil)
	defer func() { done(err) }()

	entity := new(T)
	err = r.db.NewSelect().
		Model(entity).
		Where("? = ?", bun.Ident(r.opts.IDField), id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, criteria.NewErrorWithCause(criteria.ErrorTypeNotFound, fmt.Sprintf("entity %v not found", id), err)
		}
		return nil, convertBunError(err)
	}
	if err := criteria.AfterLoad(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// Find returns the entities matching c.
func (r *Repository[T]) Find(ctx context.Context, c criteria.Criteria, opts ...criteria.FindOption) (_ []*T, err error) {
	ctx, done := r.observe(ctx, "find", c)
	defer func() { done(err) }()

	entities := make([]*T, 0)
	query, err := r.where(r.db.NewSelect().Model(&entities), c)
	if err != nil {
		return nil, err
	}
	query = applyFindQuery(query, criteria.NewFindQuery(opts...))

	if err := query.Scan(ctx); err != nil {
		return nil, convertBunError(err)
	}
	if err := criteria.AfterLoad(ctx, entities...); err != nil {
		return nil, err
	}
	return entities, nil
}

// Exists reports whether any row matches c.
func (r *Repository[T]) Exists(ctx context.Context, c criteria.Criteria) (_ bool, err error) {
	ctx, done := r.observe(ctx, "exists", c)
	defer func() { done(err) }()

	query, err := r.where(r.db.NewSelect().Model((*T)(nil)), c)
	if err != nil {
		return false, err
	}
	exists, err := query.Exists(ctx)
	return exists, convertBunError(err)
}

// CreateTable creates the table of T if it does not exist.
func (r *Repository[T]) CreateTable(ctx context.Context) error {
	_, err := r.db.NewCreateTable().Model((*T)(nil)).IfNotExists().Exec(ctx)
	return convertBunError(err)
}

// where translates c against query and applies the resulting condition.
func (r *Repository[T]) where(query *bun.SelectQuery, c criteria.Criteria) (*bun.SelectQuery, error) {
	query, cond, err := r.registry.Translate(query, c)
	if err != nil {
		return nil, err
	}
	return query.Where("?", cond), nil
}

func applyFindQuery(query *bun.SelectQuery, find *criteria.FindQuery) *bun.SelectQuery {
	for _, order := range find.Orders {
		query = query.OrderExpr("? "+string(order.Direction), bun.Ident(order.Field))
	}
	if find.Limit != nil {
		query = query.Limit(*find.Limit)
	}
	if find.Offset != nil {
		if find.Limit == nil {
			// sqlite and mysql reject OFFSET without LIMIT
			query = query.Limit(math.MaxInt)
		}
		query = query.Offset(*find.Offset)
	}
	return query
}

func (r *Repository[T]) observe(ctx context.Context, op string, c criteria.Criteria) (context.Context, func(error)) {
	ctx, span := telemetry.Start(ctx, "bun", r.opts.Name, op)
	started := time.Now()
	return ctx, func(err error) {
		telemetry.End(span, err)
		criteria.LogOperation(r.opts.Logger, r.opts.Name, op, c, started, err)
	}
}
