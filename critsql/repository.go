package critsql

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/lemmego/criteria"
	"github.com/lemmego/criteria/internal/telemetry"
)

// Repository implements criteria.Repository over a single table. Columns
// come from the "db" struct tags of T.
type Repository[T any] struct {
	db       *DB
	table    string
	columns  []string
	registry *Registry
	opts     criteria.RepositoryOptions
}

var _ criteria.Repository[struct{}] = (*Repository[struct{}])(nil)

// NewRepository creates a repository for table. T must have a "db" tag for
// the id column (criteria.WithIDField, "id" by default).
func NewRepository[T any](db *DB, table string, registry *Registry, opts ...criteria.RepositoryOption) (*Repository[T], error) {
	r := &Repository[T]{
		db:       db,
		table:    table,
		columns:  columnsOf[T](),
		registry: registry,
		opts:     criteria.ResolveOptions(registry.Name(), opts...),
	}
	if r.idIndex() < 0 {
		return nil, criteria.NewError(criteria.ErrorTypeInvalidArgument,
			fmt.Sprintf("%s: no db tag for id column %q", table, r.opts.IDField))
	}
	return r, nil
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

	suffix := r.upsertSuffix()
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, entity := range entities {
			query, args, err := r.db.Builder().
				Insert(r.table).
				Columns(r.columns...).
				Values(valuesOf(entity)...).
				Suffix(suffix).
				ToSql()
			if err != nil {
				return fmt.Errorf("build upsert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return convertSQLError(err)
			}
		}
		return nil
	})
}

// Remove deletes the given entities by id.
func (r *Repository[T]) Remove(ctx context.Context, entities ...*T) error {
	ids := make([]any, 0, len(entities))
	for _, entity := range entities {
		if entity == nil {
			return criteria.NewError(criteria.ErrorTypeInvalidArgument, "nil entity")
		}
		ids = append(ids, valuesOf(entity)[r.idIndex()])
	}
	return r.remove(ctx, "remove", ids)
}

// RemoveByID deletes the rows whose id is one of ids.
func (r *Repository[T]) RemoveByID(ctx context.Context, ids ...any) error {
	return r.remove(ctx, "remove_by_id", ids)
}

func (r *Repository[T]) remove(ctx context.Context, op string, ids []any) (err error) {
	ctx, done := r.observe(ctx, op, nil)
	defer func() { done(err) }()

	if len(ids) == 0 {
		return nil
	}
	query, args, err := r.db.Builder().
		Delete(r.table).
		Where(squirrel.Eq{r.opts.IDField: ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return convertSQLError(err)
}

// Get loads the row whose id equals id.
func (r *Repository[T]) Get(ctx context.Context, id any) (_ *T, err error) {
	ctx, done := r.observe(ctx, "get", nil)
	defer func() { done(err) }()

	query, args, err := r.baseSelect().
		Where(squirrel.Eq{r.qualified(r.opts.IDField): id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	entity := new(T)
	if err := sqlscan.Get(ctx, r.db, entity, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, criteria.NewErrorWithCause(criteria.ErrorTypeNotFound, fmt.Sprintf("%s %v not found", r.table, id), err)
		}
		return nil, convertSQLError(err)
	}
	if err := criteria.AfterLoad(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// Find returns the rows matching c.
func (r *Repository[T]) Find(ctx context.Context, c criteria.Criteria, opts ...criteria.FindOption) (_ []*T, err error) {
	ctx, done := r.observe(ctx, "find", c)
	defer func() { done(err) }()

	q, err := r.where(r.baseSelect(), c)
	if err != nil {
		return nil, err
	}
	q, err = r.paginate(q, criteria.NewFindQuery(opts...))
	if err != nil {
		return nil, err
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	entities := make([]*T, 0)
	if err := sqlscan.Select(ctx, r.db, &entities, query, args...); err != nil {
		return nil, convertSQLError(err)
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

	inner, err := r.where(r.db.Builder().Select("1").From(r.table), c)
	if err != nil {
		return false, err
	}

	query, args, err := r.db.Builder().
		Select().
		Column(squirrel.Expr("EXISTS (?)", inner)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, convertSQLError(err)
	}
	return exists, nil
}

// where translates c against q and applies the resulting condition.
func (r *Repository[T]) where(q squirrel.SelectBuilder, c criteria.Criteria) (squirrel.SelectBuilder, error) {
	q, cond, err := r.registry.Translate(q, c)
	if err != nil {
		return q, err
	}
	return q.Where(cond), nil
}

// paginate applies ordering and pagination. Order fields must be columns of T.
func (r *Repository[T]) paginate(q squirrel.SelectBuilder, find *criteria.FindQuery) (squirrel.SelectBuilder, error) {
	for _, order := range find.Orders {
		if !r.hasColumn(order.Field) {
			return q, criteria.NewError(criteria.ErrorTypeInvalidArgument,
				fmt.Sprintf("invalid order column: %s", order.Field))
		}
		q = q.OrderBy(r.qualified(order.Field) + " " + string(order.Direction))
	}
	if find.Limit != nil {
		q = q.Limit(uint64(*find.Limit))
	}
	if find.Offset != nil {
		if find.Limit == nil && r.db.Dialect() != criteria.DialectPostgres {
			// sqlite and mysql reject OFFSET without LIMIT
			q = q.Limit(math.MaxInt64)
		}
		q = q.Offset(uint64(*find.Offset))
	}
	return q, nil
}

func (r *Repository[T]) baseSelect() squirrel.SelectBuilder {
	cols := make([]string, len(r.columns))
	for i, col := range r.columns {
		cols[i] = r.qualified(col) + " AS " + col
	}
	return r.db.Builder().Select(cols...).From(r.table)
}

// upsertSuffix renders the conflict clause: every non-id column takes the
// inserted value.
func (r *Repository[T]) upsertSuffix() string {
	var sets []string
	for _, col := range r.columns {
		if col == r.opts.IDField {
			continue
		}
		if r.db.Dialect() == criteria.DialectMySQL {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", col, col))
		} else {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	if r.db.Dialect() == criteria.DialectMySQL {
		if len(sets) == 0 {
			return fmt.Sprintf("ON DUPLICATE KEY UPDATE %s = %s", r.opts.IDField, r.opts.IDField)
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	if len(sets) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", r.opts.IDField)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", r.opts.IDField, strings.Join(sets, ", "))
}

func (r *Repository[T]) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return convertSQLError(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return convertSQLError(tx.Commit())
}

func (r *Repository[T]) qualified(col string) string {
	return r.table + "." + col
}

func (r *Repository[T]) hasColumn(col string) bool {
	for _, c := range r.columns {
		if c == col {
			return true
		}
	}
	return false
}

func (r *Repository[T]) idIndex() int {
	for i, col := range r.columns {
		if col == r.opts.IDField {
			return i
		}
	}
	return -1
}

func (r *Repository[T]) observe(ctx context.Context, op string, c criteria.Criteria) (context.Context, func(error)) {
	ctx, span := telemetry.Start(ctx, "sql", r.opts.Name, op)
	started := time.Now()
	return ctx, func(err error) {
		telemetry.End(span, err)
		criteria.LogOperation(r.opts.Logger, r.opts.Name, op, c, started, err)
	}
}
