package criteria

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =====================================
// Translation Engine
// =====================================

// Algebra supplies the boolean primitives of a storage engine over its opaque
// condition type C.
type Algebra[C any] interface {
	And(conds ...C) C
	Or(conds ...C) C
	Not(cond C) C
}

// TranslateFunc turns a leaf payload into a condition. It may thread state
// through q (joins, lookup stages, key restrictions) and returns the updated q.
type TranslateFunc[Q, C any] func(q Q, payload any) (Q, C, error)

// Rule is a single registry entry.
type Rule[Q, C any] struct {
	kind Kind
	fn   TranslateFunc[Q, C]
}

// Handle registers a typed translator for pred. A leaf whose payload is not a P
// fails translation with a MalformedCriteriaError.
func Handle[Q, C, P any](pred Predicate[P], fn func(q Q, payload P) (Q, C, error)) Rule[Q, C] {
	kind := pred.Kind()
	if fn == nil {
		return Rule[Q, C]{kind: kind}
	}
	return Rule[Q, C]{
		kind: kind,
		fn: func(q Q, payload any) (Q, C, error) {
			typed, ok := payload.(P)
			if !ok {
				var zero C
				var want P
				return q, zero, &MalformedCriteriaError{
					Reason: fmt.Sprintf("payload of %q is %T, want %T", kind, payload, want),
				}
			}
			return fn(q, typed)
		},
	}
}

// HandleKind registers an untyped translator for kind.
func HandleKind[Q, C any](kind Kind, fn TranslateFunc[Q, C]) Rule[Q, C] {
	return Rule[Q, C]{kind: kind, fn: fn}
}

// Registry maps leaf kinds to translators for one repository type. It is
// immutable once built and safe for concurrent use.
type Registry[Q, C any] struct {
	name        string
	algebra     Algebra[C]
	translators map[Kind]TranslateFunc[Q, C]
}

// NewRegistry builds a registry named after the repository it serves.
func NewRegistry[Q, C any](name string, algebra Algebra[C], rules ...Rule[Q, C]) (*Registry[Q, C], error) {
	if name == "" {
		return nil, NewError(ErrorTypeInvalidArgument, "registry name is required")
	}
	if algebra == nil {
		return nil, NewError(ErrorTypeInvalidArgument, fmt.Sprintf("registry %q: algebra is required", name))
	}

	translators := make(map[Kind]TranslateFunc[Q, C], len(rules))
	for _, rule := range rules {
		if rule.kind == "" {
			return nil, NewError(ErrorTypeInvalidArgument, fmt.Sprintf("registry %q: rule without kind", name))
		}
		if rule.fn == nil {
			return nil, NewError(ErrorTypeInvalidArgument, fmt.Sprintf("registry %q: nil translator for %q", name, rule.kind))
		}
		if _, dup := translators[rule.kind]; dup {
			return nil, NewError(ErrorTypeDuplicate, fmt.Sprintf("registry %q: duplicate translator for %q", name, rule.kind))
		}
		translators[rule.kind] = rule.fn
	}

	return &Registry[Q, C]{
		name:        name,
		algebra:     algebra,
		translators: translators,
	}, nil
}

// MustRegistry is like NewRegistry but panics on error. It is meant for
// package-level registry declarations.
func MustRegistry[Q, C any](name string, algebra Algebra[C], rules ...Rule[Q, C]) *Registry[Q, C] {
	r, err := NewRegistry(name, algebra, rules...)
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the repository identity the registry was built for.
func (r *Registry[Q, C]) Name() string {
	return r.name
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry[Q, C]) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.translators))
	for kind := range r.translators {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Has reports whether a translator is registered for kind.
func (r *Registry[Q, C]) Has(kind Kind) bool {
	_, ok := r.translators[kind]
	return ok
}

// Translate converts c into a condition, threading q through every leaf
// translator left to right. Any failure aborts the whole translation.
func (r *Registry[Q, C]) Translate(q Q, c Criteria) (Q, C, error) {
	return r.translate(q, c, "$")
}

func (r *Registry[Q, C]) translate(q Q, c Criteria, path string) (Q, C, error) {
	var zero C

	switch node := c.(type) {
	case Leaf:
		fn, ok := r.translators[node.Kind]
		if !ok {
			return q, zero, &UnknownCriteriaError{Kind: node.Kind, Repository: r.name, Path: path}
		}
		next, cond, err := fn(q, node.Payload)
		if err != nil {
			return q, zero, r.leafError(node.Kind, path, err)
		}
		return next, cond, nil

	case And:
		next, conds, err := r.translateAll(q, "and", node.Children, path)
		if err != nil {
			return q, zero, err
		}
		return next, r.algebra.And(conds...), nil

	case Or:
		next, conds, err := r.translateAll(q, "or", node.Children, path)
		if err != nil {
			return q, zero, err
		}
		return next, r.algebra.Or(conds...), nil

	case Xor:
		next, left, err := r.translate(q, node.Left, path+".xor.left")
		if err != nil {
			return q, zero, err
		}
		next, right, err := r.translate(next, node.Right, path+".xor.right")
		if err != nil {
			return q, zero, err
		}
		return next, r.algebra.Or(
			r.algebra.And(left, r.algebra.Not(right)),
			r.algebra.And(right, r.algebra.Not(left)),
		), nil

	case Invert:
		next, inner, err := r.translate(q, node.Inner, path+".not")
		if err != nil {
			return q, zero, err
		}
		return next, r.algebra.Not(inner), nil

	case nil:
		return q, zero, &MalformedCriteriaError{Repository: r.name, Path: path, Reason: "nil criteria"}

	default:
		return q, zero, &MalformedCriteriaError{
			Repository: r.name,
			Path:       path,
			Reason:     fmt.Sprintf("unsupported criteria type %T", c),
		}
	}
}

func (r *Registry[Q, C]) translateAll(q Q, op string, children []Criteria, path string) (Q, []C, error) {
	if len(children) == 0 {
		return q, nil, &MalformedCriteriaError{Repository: r.name, Path: path, Reason: "empty " + op}
	}

	conds := make([]C, 0, len(children))
	for i, child := range children {
		var cond C
		var err error
		q, cond, err = r.translate(q, child, fmt.Sprintf("%s.%s[%d]", path, op, i))
		if err != nil {
			return q, nil, err
		}
		conds = append(conds, cond)
	}
	return q, conds, nil
}

func (r *Registry[Q, C]) leafError(kind Kind, path string, err error) error {
	var malformed *MalformedCriteriaError
	if errors.As(err, &malformed) {
		annotated := *malformed
		if err != error(malformed) {
			// keep the wrapper context around the reason
			annotated.Reason = strings.Replace(err.Error(), malformed.Error(), malformed.Reason, 1)
		}
		if annotated.Repository == "" {
			annotated.Repository = r.name
		}
		if annotated.Path == "" {
			annotated.Path = path
		}
		return &annotated
	}
	var unknown *UnknownCriteriaError
	if errors.As(err, &unknown) {
		return err
	}
	return fmt.Errorf("translate %s at %s in %s: %w", kind, path, r.name, err)
}
