package critredis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lemmego/criteria"
	"github.com/lemmego/criteria/critmem"
	"github.com/lemmego/criteria/internal/telemetry"
)

const (
	scanCount = 100
	mgetBatch = 500
)

// Repository implements criteria.Repository over JSON values stored under
// "<prefix>:<id>".
type Repository[T any] struct {
	client    redis.Cmdable
	prefix    string
	registry  *critmem.Registry[T]
	id        critmem.IDFunc[T]
	orderings critmem.Orderings[T]
	ttl       time.Duration
	opts      criteria.RepositoryOptions
}

var _ criteria.Repository[struct{}] = (*Repository[struct{}])(nil)

// NewRepository creates a repository storing entities under prefix. Order
// fields must be registered in orderings.
func NewRepository[T any](client redis.Cmdable, prefix string, registry *critmem.Registry[T], id critmem.IDFunc[T], orderings critmem.Orderings[T], opts ...criteria.RepositoryOption) *Repository[T] {
	if orderings == nil {
		orderings = critmem.Orderings[T]{}
	}
	return &Repository[T]{
		client:    client,
		prefix:    prefix,
		registry:  registry,
		id:        id,
		orderings: orderings,
		opts:      criteria.ResolveOptions(registry.Name(), opts...),
	}
}

// WithTTL returns a copy of the repository whose saved keys expire after ttl.
func (r *Repository[T]) WithTTL(ttl time.Duration) *Repository[T] {
	clone := *r
	clone.ttl = ttl
	return &clone
}

// Save writes all entities in one MULTI/EXEC pipeline.
func (r *Repository[T]) Save(ctx context.Context, entities ...*T) (err error) {
	ctx, done := r.observe(ctx, "save", nil)
	defer func() { done(err) }()

	if err := criteria.CheckInvariants(ctx, entities...); err != nil {
		return err
	}
	if len(entities) == 0 {
		return nil
	}

	values := make(map[string][]byte, len(entities))
	for _, entity := range entities {
		data, err := json.Marshal(entity)
		if err != nil {
			return criteria.NewErrorWithCause(criteria.ErrorTypeSerialization, "failed to encode entity", err)
		}
		values[r.key(r.id(entity))] = data
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, data := range values {
			pipe.Set(ctx, key, data, r.ttl)
		}
		return nil
	})
	return convertRedisError(err)
}

// Remove deletes the given entities.
func (r *Repository[T]) Remove(ctx context.Context, entities ...*T) error {
	ids := make([]any, 0, len(entities))
	for _, entity := range entities {
		if entity == nil {
			return criteria.NewError(criteria.ErrorTypeInvalidArgument, "nil entity")
		}
		ids = append(ids, r.id(entity))
	}
	return r.remove(ctx, "remove", ids)
}

// RemoveByID deletes the keys of ids.
func (r *Repository[T]) RemoveByID(ctx context.Context, ids ...any) error {
	return r.remove(ctx, "remove_by_id", ids)
}

func (r *Repository[T]) remove(ctx context.Context, op string, ids []any) (err error) {
	ctx, done := r.observe(ctx, op, nil)
	defer func() { done(err) }()

	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(fmt.Sprint(id))
	}
	return convertRedisError(r.client.Del(ctx, keys...).Err())
}

// Get loads the entity stored under id.
func (r *Repository[T]) Get(ctx context.Context, id any) (_ *T, err error) {
	ctx, done := r.observe(ctx, "get", nil)
	defer func() { done(err) }()

	data, err := r.client.Get(ctx, r.key(fmt.Sprint(id))).Bytes()
	if err != nil {
		return nil, convertRedisError(err)
	}

	entity := new(T)
	if err := json.Unmarshal(data, entity); err != nil {
		return nil, criteria.NewErrorWithCause(criteria.ErrorTypeSerialization, "failed to decode entity", err)
	}
	if err := criteria.AfterLoad(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// Find loads the candidate entities and filters them in process.
func (r *Repository[T]) Find(ctx context.Context, c criteria.Criteria, opts ...criteria.FindOption) (_ []*T, err error) {
	ctx, done := r.observe(ctx, "find", c)
	defer func() { done(err) }()

	plan, pred, err := critmem.Compile(r.registry, c)
	if err != nil {
		return nil, err
	}

	candidates, err := r.load(ctx, plan)
	if err != nil {
		return nil, err
	}
	result, err := critmem.Select(candidates, pred, criteria.NewFindQuery(opts...), r.orderings)
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
	ctx, done := r.observe(ctx, "exists", c)
	defer func() { done(err) }()

	plan, pred, err := critmem.Compile(r.registry, c)
	if err != nil {
		return false, err
	}

	candidates, err := r.load(ctx, plan)
	if err != nil {
		return false, err
	}
	for _, entity := range candidates {
		if pred(entity) {
			return true, nil
		}
	}
	return false, nil
}

// load fetches the entities a plan allows: the restricted keys when the plan
// names them, otherwise every key under the prefix.
func (r *Repository[T]) load(ctx context.Context, plan critmem.Plan) ([]*T, error) {
	var keys []string
	if plan.Restricted() {
		for _, id := range plan.Keys() {
			keys = append(keys, r.key(id))
		}
	} else {
		iter := r.client.Scan(ctx, 0, r.prefix+":*", scanCount).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return nil, convertRedisError(err)
		}
		// SCAN may return a key more than once
		keys = uniqueKeys(keys)
	}

	entities := make([]*T, 0, len(keys))
	for start := 0; start < len(keys); start += mgetBatch {
		end := start + mgetBatch
		if end > len(keys) {
			end = len(keys)
		}

		values, err := r.client.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, convertRedisError(err)
		}
		for i, value := range values {
			// keys removed between SCAN and MGET come back as nil
			if value == nil {
				continue
			}
			s, ok := value.(string)
			if !ok {
				return nil, criteria.NewError(criteria.ErrorTypeSerialization,
					fmt.Sprintf("unexpected value type %T at %s", value, keys[start+i]))
			}
			entity := new(T)
			if err := json.Unmarshal([]byte(s), entity); err != nil {
				return nil, criteria.NewErrorWithCause(criteria.ErrorTypeSerialization,
					fmt.Sprintf("failed to decode %s", keys[start+i]), err)
			}
			entities = append(entities, entity)
		}
	}
	return entities, nil
}

// uniqueKeys drops repeated keys in place, keeping first occurrences.
func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func (r *Repository[T]) key(id string) string {
	return r.prefix + ":" + id
}

func (r *Repository[T]) observe(ctx context.Context, op string, c criteria.Criteria) (context.Context, func(error)) {
	ctx, span := telemetry.Start(ctx, "redis", r.opts.Name, op)
	started := time.Now()
	return ctx, func(err error) {
		telemetry.End(span, err)
		criteria.LogOperation(r.opts.Logger, r.opts.Name, op, c, started, err)
	}
}
