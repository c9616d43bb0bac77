package critmongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lemmego/criteria"
	"github.com/lemmego/criteria/internal/telemetry"
)

// Repository implements criteria.Repository over a MongoDB collection.
// The id field defaults to "_id".
type Repository[T any] struct {
	collection *mongo.Collection
	registry   *Registry
	opts       criteria.RepositoryOptions
}

var _ criteria.Repository[struct{}] = (*Repository[struct{}])(nil)

// NewRepository creates a repository for T over collection.
func NewRepository[T any](collection *mongo.Collection, registry *Registry, opts ...criteria.RepositoryOption) *Repository[T] {
	opts = append([]criteria.RepositoryOption{criteria.WithIDField("_id")}, opts...)
	return &Repository[T]{
		collection: collection,
		registry:   registry,
		opts:       criteria.ResolveOptions(registry.Name(), opts...),
	}
}

// Save upserts the entities with one ordered bulk write of replacements.
func (r *Repository[T]) Save(ctx context.Context, entities ...*T) (err error) {
	ctx, done := r.observe(ctx, "save", nil)
	defer func() { done(err) }()

	if err := criteria.CheckInvariants(ctx, entities...); err != nil {
		return err
	}
	if len(entities) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(entities))
	for _, entity := range entities {
		id, err := r.idOf(entity)
		if err != nil {
			return err
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: r.opts.IDField, Value: id}}).
			SetReplacement(entity).
			SetUpsert(true))
	}

	_, err = r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	return convertMongoError(err)
}

// Remove deletes the given entities by id.
func (r *Repository[T]) Remove(ctx context.Context, entities ...*T) error {
	ids := make([]any, 0, len(entities))
	for _, entity := range entities {
		if entity == nil {
			return criteria.NewError(criteria.ErrorTypeInvalidArgument, "nil entity")
		}
		id, err := r.idOf(entity)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	return r.remove(ctx, "remove", ids)
}

// RemoveByID deletes the documents whose id is one of ids.
func (r *Repository[T]) RemoveByID(ctx context.Context, ids ...any) error {
	return r.remove(ctx, "remove_by_id", ids)
}

func (r *Repository[T]) remove(ctx context.Context, op string, ids []any) (err error) {
	ctx, done := r.observe(ctx, op, nil)
	defer func() { done(err) }()

	if len(ids) == 0 {
		return nil
	}
	_, err = r.collection.DeleteMany(ctx, bson.D{{Key: r.opts.IDField, Value: bson.D{{Key: "$in", Value: bson.A(ids)}}}})
	return convertMongoError(err)
}

// Get loads the document whose id equals id.
func (r *Repository[T]) Get(ctx context.Context, id any) (_ *T, err error) {
	ctx, done := r.observe(ctx, "get", nil)
	defer func() { done(err) }()

	entity := new(T)
	if err := r.collection.FindOne(ctx, bson.D{{Key: r.opts.IDField, Value: id}}).Decode(entity); err != nil {
		return nil, convertMongoError(err)
	}
	if err := criteria.AfterLoad(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// Find aggregates the translated pipeline and returns the matching documents.
func (r *Repository[T]) Find(ctx context.Context, c criteria.Criteria, opts ...criteria.FindOption) (_ []*T, err error) {
	ctx, done := r.observe(ctx, "find", c)
	defer func() { done(err) }()

	pipeline, err := r.FindPipeline(c, opts...)
	if err != nil {
		return nil, err
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, convertMongoError(err)
	}
	defer cursor.Close(ctx)

	entities := make([]*T, 0)
	if err := cursor.All(ctx, &entities); err != nil {
		return nil, convertMongoError(err)
	}
	if err := criteria.AfterLoad(ctx, entities...); err != nil {
		return nil, err
	}
	return entities, nil
}

// Exists reports whether any document matches c.
func (r *Repository[T]) Exists(ctx context.Context, c criteria.Criteria) (_ bool, err error) {
	ctx, done := r.observe(ctx, "exists", c)
	defer func() { done(err) }()

	pipeline, err := r.MatchPipeline(c)
	if err != nil {
		return false, err
	}
	pipeline = append(pipeline, bson.D{{Key: "$limit", Value: 1}})

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return false, convertMongoError(err)
	}
	defer cursor.Close(ctx)

	found := cursor.Next(ctx)
	return found, convertMongoError(cursor.Err())
}

// MatchPipeline translates c and appends the $match stage.
func (r *Repository[T]) MatchPipeline(c criteria.Criteria) (mongo.Pipeline, error) {
	pipeline, cond, err := r.registry.Translate(mongo.Pipeline{}, c)
	if err != nil {
		return nil, err
	}
	return append(pipeline, bson.D{{Key: "$match", Value: cond}}), nil
}

// FindPipeline is MatchPipeline followed by the $sort, $skip and $limit
// stages of opts.
func (r *Repository[T]) FindPipeline(c criteria.Criteria, opts ...criteria.FindOption) (mongo.Pipeline, error) {
	pipeline, err := r.MatchPipeline(c)
	if err != nil {
		return nil, err
	}

	find := criteria.NewFindQuery(opts...)
	if len(find.Orders) > 0 {
		sort := make(bson.D, 0, len(find.Orders))
		for _, order := range find.Orders {
			dir := 1
			if order.Desc() {
				dir = -1
			}
			sort = append(sort, bson.E{Key: order.Field, Value: dir})
		}
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sort}})
	}
	if find.Offset != nil {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: int64(*find.Offset)}})
	}
	if find.Limit != nil {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(*find.Limit)}})
	}
	return pipeline, nil
}

// idOf reads the id field from the marshalled document, so bson tags and
// custom marshalers are honored.
func (r *Repository[T]) idOf(entity *T) (bson.RawValue, error) {
	raw, err := bson.Marshal(entity)
	if err != nil {
		return bson.RawValue{}, criteria.NewErrorWithCause(criteria.ErrorTypeSerialization, "failed to marshal document", err)
	}
	id, err := bson.Raw(raw).LookupErr(r.opts.IDField)
	if err != nil {
		return bson.RawValue{}, criteria.NewErrorWithCause(criteria.ErrorTypeInvalidArgument,
			fmt.Sprintf("document has no %s field", r.opts.IDField), err)
	}
	return id, nil
}

func (r *Repository[T]) observe(ctx context.Context, op string, c criteria.Criteria) (context.Context, func(error)) {
	ctx, span := telemetry.Start(ctx, "mongo", r.opts.Name, op)
	started := time.Now()
	return ctx, func(err error) {
		telemetry.End(span, err)
		criteria.LogOperation(r.opts.Logger, r.opts.Name, op, c, started, err)
	}
}
