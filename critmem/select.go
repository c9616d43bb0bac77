package critmem

import (
	"cmp"
	"fmt"
	"sort"

	"github.com/lemmego/criteria"
)

// Compare orders two entities, returning a negative number when a sorts
// before b, zero when they are equal and a positive number otherwise.
type Compare[T any] func(a, b *T) int

// Orderings maps an order field name to its comparison.
type Orderings[T any] map[string]Compare[T]

// By builds a Compare from a field accessor.
func By[T any, V cmp.Ordered](get func(*T) V) Compare[T] {
	return func(a, b *T) int {
		return cmp.Compare(get(a), get(b))
	}
}

// Select filters entities with pred, then sorts and paginates the matches as
// described by query. Ordering by a field missing from orderings fails with
// ErrorTypeInvalidArgument.
func Select[T any](entities []*T, pred Predicate[T], query *criteria.FindQuery, orderings Orderings[T]) ([]*T, error) {
	matched := make([]*T, 0, len(entities))
	for _, entity := range entities {
		if pred(entity) {
			matched = append(matched, entity)
		}
	}

	if query == nil {
		return matched, nil
	}

	if len(query.Orders) > 0 {
		compares := make([]Compare[T], 0, len(query.Orders))
		for _, order := range query.Orders {
			compare, ok := orderings[order.Field]
			if !ok {
				return nil, criteria.NewError(criteria.ErrorTypeInvalidArgument,
					fmt.Sprintf("no ordering registered for field %q", order.Field))
			}
			if order.Desc() {
				asc := compare
				compare = func(a, b *T) int { return asc(b, a) }
			}
			compares = append(compares, compare)
		}
		sort.SliceStable(matched, func(i, j int) bool {
			for _, compare := range compares {
				if c := compare(matched[i], matched[j]); c != 0 {
					return c < 0
				}
			}
			return false
		})
	}

	if query.Offset != nil {
		if *query.Offset >= len(matched) {
			return []*T{}, nil
		}
		matched = matched[*query.Offset:]
	}
	if query.Limit != nil && *query.Limit < len(matched) {
		matched = matched[:*query.Limit]
	}
	return matched, nil
}
