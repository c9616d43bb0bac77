// Package critmem evaluates criteria in process. Conditions are Go predicates
// over entities and the threaded query value is a Plan that narrows the set
// of candidate keys.
package critmem

import (
	"sort"

	"github.com/lemmego/criteria"
)

// Predicate is the condition type of the in-memory engine.
type Predicate[T any] func(entity *T) bool

// Algebra implements criteria.Algebra over predicates.
type Algebra[T any] struct{}

// And matches when every predicate matches.
func (Algebra[T]) And(preds ...Predicate[T]) Predicate[T] {
	return func(entity *T) bool {
		for _, p := range preds {
			if !p(entity) {
				return false
			}
		}
		return true
	}
}

// Or matches when at least one predicate matches.
func (Algebra[T]) Or(preds ...Predicate[T]) Predicate[T] {
	return func(entity *T) bool {
		for _, p := range preds {
			if p(entity) {
				return true
			}
		}
		return false
	}
}

// Not negates pred.
func (Algebra[T]) Not(pred Predicate[T]) Predicate[T] {
	return func(entity *T) bool {
		return !pred(entity)
	}
}

// Registry is the translator registry type for entities of type T.
type Registry[T any] = criteria.Registry[Plan, Predicate[T]]

// Rule is a registry entry for entities of type T.
type Rule[T any] = criteria.Rule[Plan, Predicate[T]]

// NewRegistry builds a registry over the in-memory algebra.
func NewRegistry[T any](name string, rules ...Rule[T]) (*Registry[T], error) {
	return criteria.NewRegistry[Plan, Predicate[T]](name, Algebra[T]{}, rules...)
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry[T any](name string, rules ...Rule[T]) *Registry[T] {
	return criteria.MustRegistry[Plan, Predicate[T]](name, Algebra[T]{}, rules...)
}

// =====================================
// Plan
// =====================================

// Plan is the query value threaded through leaf translators. A translator
// that can resolve its predicate through an index restricts the plan to the
// matching keys; restrictions from several leaves intersect.
//
// A plan is only a hint. A restricting translator must still return a
// predicate that tests membership, and Compile keeps restrictions only from
// leaves every match has to satisfy.
type Plan struct {
	keys       map[string]struct{}
	restricted bool
}

// Restrict returns a plan limited to ids, intersected with any earlier
// restriction. The receiver is left unchanged.
func (p Plan) Restrict(ids ...string) Plan {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if !p.restricted {
			next[id] = struct{}{}
			continue
		}
		if _, ok := p.keys[id]; ok {
			next[id] = struct{}{}
		}
	}
	return Plan{keys: next, restricted: true}
}

// Restricted reports whether any translator narrowed the plan.
func (p Plan) Restricted() bool {
	return p.restricted
}

// Allows reports whether id is a candidate under the plan.
func (p Plan) Allows(id string) bool {
	if !p.restricted {
		return true
	}
	_, ok := p.keys[id]
	return ok
}

// Keys returns the candidate keys of a restricted plan in sorted order.
func (p Plan) Keys() []string {
	keys := make([]string, 0, len(p.keys))
	for key := range p.keys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Compile translates c into a predicate and a candidate plan. The predicate
// comes from the whole tree. The plan comes from the leaves reached from the
// root through And alone, so a restriction made under Or, Xor or Invert never
// drops a matching key.
func Compile[T any](registry *Registry[T], c criteria.Criteria) (Plan, Predicate[T], error) {
	_, pred, err := registry.Translate(Plan{}, c)
	if err != nil {
		return Plan{}, nil, err
	}

	plan := Plan{}
	for _, leaf := range conjuncts(c, nil) {
		if plan, _, err = registry.Translate(plan, leaf); err != nil {
			return Plan{}, nil, err
		}
	}
	return plan, pred, nil
}

// conjuncts appends the leaves of c that sit under And nodes only.
func conjuncts(c criteria.Criteria, out []criteria.Criteria) []criteria.Criteria {
	switch node := c.(type) {
	case criteria.Leaf:
		return append(out, node)
	case criteria.And:
		for _, child := range node.Children {
			out = conjuncts(child, out)
		}
	}
	return out
}
