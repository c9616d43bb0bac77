package critgorm

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lemmego/criteria"
	"github.com/lemmego/criteria/internal/telemetry"
)

// =====================================
// Repository Implementation
// =====================================

// Repository implements criteria.Repository for GORM models of type T.
type Repository[T any] struct {
	db       *gorm.DB
	registry *Registry
	opts     criteria.RepositoryOptions
}

var _ criteria.Repository[struct{}] = (*Repository[struct{}])(nil)

// NewRepository creates a repository on db.
func NewRepository[T any](db *gorm.DB, registry *Registry, opts ...criteria.RepositoryOption) *Repository[T] {
	return &Repository[T]{
		db:       db,
		registry: registry,
		opts:     criteria.ResolveOptions(registry.Name(), opts...),
	}
}

// Save upserts the entities in one transaction.
func (r *Repository[T]) Save(ctx context.Context, entities ...*T) (err error) {
	ctx, done := r.observe(ctx, "save", nil)
	defer func() { done(err) }()

	if err := criteria.CheckInvariants(ctx, entities...); err != nil {
		return err
	}
	if len(entities) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entity := range entities {
			if err := tx.Save(entity).Error; err != nil {
				return convertGormError(err)
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

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entity := range entities {
			if err := tx.Delete(entity).Error; err != nil {
				return convertGormError(err)
			}
		}
		return nil
	})
}

// RemoveByID deletes the rows whose id column is one of ids.
func (r *Repository[T]) RemoveByID(ctx context.Context, ids ...any) (err error) {
	ctx, done := r.observe(ctx, "remove_by_id", nil)
	defer func() { done(err) }()

	if len(ids) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.Where{Exprs: []clause.Expression{
			clause.IN{Column: r.idColumn(), Values: ids},
		}}).
		Delete(new(T))
	return convertGormError(result.Error)
}

// Get loads the entity whose id column equals id.
func (r *Repository[T]) Get(ctx context.Context, id any) (_ *T, err error) {
	ctx, done := r.observe(ctx, "get", nil)
	defer func() { done(err) }()

	entity := new(T)
	result := r.db.WithContext(ctx).
		Clauses(clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: r.idColumn(), Value: id},
		}}).
		Take(entity)
	if result.Error != nil {
		converted := convertGormError(result.Error)
		if criteria.IsNotFound(converted) {
			return nil, criteria.NewErrorWithCause(criteria.ErrorTypeNotFound, fmt.Sprintf("entity %v not found", id), result.Error)
		}
		return nil, converted
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

	query, err := r.where(r.db.WithContext(ctx).Model(new(T)), c)
	if err != nil {
		return nil, err
	}

	find := criteria.NewFindQuery(opts...)
	for _, order := range find.Orders {
		query = query.Order(clause.OrderByColumn{
			Column: clause.Column{Name: order.Field},
			Desc:   order.Desc(),
		})
	}
	if find.Limit != nil {
		query = query.Limit(*find.Limit)
	}
	if find.Offset != nil {
		query = query.Offset(*find.Offset)
	}

	entities := make([]*T, 0)
	if err := query.Find(&entities).Error; err != nil {
		return nil, convertGormError(err)
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

	query, err := r.where(r.db.WithContext(ctx).Model(new(T)), c)
	if err != nil {
		return false, err
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, convertGormError(err)
	}
	return count > 0, nil
}

// Migrate creates or updates the table of T.
func (r *Repository[T]) Migrate(ctx context.Context) error {
	return convertGormError(r.db.WithContext(ctx).AutoMigrate(new(T)))
}

// where translates c against query and applies the resulting condition.
func (r *Repository[T]) where(query *gorm.DB, c criteria.Criteria) (*gorm.DB, error) {
	query, cond, err := r.registry.Translate(query, c)
	if err != nil {
		return nil, err
	}
	return query.Clauses(clause.Where{Exprs: []clause.Expression{cond}}), nil
}

func (r *Repository[T]) idColumn() clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: r.opts.IDField}
}

func (r *Repository[T]) observe(ctx context.Context, op string, c criteria.Criteria) (context.Context, func(error)) {
	ctx, span := telemetry.Start(ctx, "gorm", r.opts.Name, op)
	started := time.Now()
	return ctx, func(err error) {
		telemetry.End(span, err)
		criteria.LogOperation(r.opts.Logger, r.opts.Name, op, c, started, err)
	}
}
