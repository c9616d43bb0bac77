// Package criteria provides a storage-agnostic repository API whose queries are
// expressed as a composable criteria algebra (And, Or, Xor, Invert over opaque
// leaf predicates) and translated into native conditions by adapter packages.
package criteria

import (
	"fmt"
	"strings"
)

// =====================================
// Criteria Model
// =====================================

// Kind is the stable discriminator of a leaf predicate. It is the only part of
// a leaf the translation engine looks at.
type Kind string

// Criteria is a predicate expression tree. The set of variants is closed:
// Leaf, And, Or, Xor and Invert.
type Criteria interface {
	criteria()
}

// Leaf is an atomic, repository-specific predicate. Payload is opaque to the
// engine and handed unchanged to the registered translator.
type Leaf struct {
	Kind    Kind
	Payload any
}

// And matches when every child matches.
type And struct {
	Children []Criteria
}

// Or matches when at least one child matches.
type Or struct {
	Children []Criteria
}

// Xor matches when exactly one side matches.
type Xor struct {
	Left  Criteria
	Right Criteria
}

// Invert matches when Inner does not.
type Invert struct {
	Inner Criteria
}

func (Leaf) criteria()   {}
func (And) criteria()    {}
func (Or) criteria()     {}
func (Xor) criteria()    {}
func (Invert) criteria() {}

// =====================================
// Constructors
// =====================================

// AllOf combines children with AND. A single child is returned as is.
// Zero children produce an empty And, which fails at translation time.
func AllOf(children ...Criteria) Criteria {
	if len(children) == 1 {
		return children[0]
	}
	return And{Children: clone(children)}
}

// AnyOf combines children with OR. A single child is returned as is.
// Zero children produce an empty Or, which fails at translation time.
func AnyOf(children ...Criteria) Criteria {
	if len(children) == 1 {
		return children[0]
	}
	return Or{Children: clone(children)}
}

// Either matches when exactly one of left and right matches.
func Either(left, right Criteria) Xor {
	return Xor{Left: left, Right: right}
}

// Not negates c.
func Not(c Criteria) Invert {
	return Invert{Inner: c}
}

// NewAnd is the strict form of AllOf: it requires at least two non-nil children.
func NewAnd(children ...Criteria) (And, error) {
	if err := checkChildren("and", children); err != nil {
		return And{}, err
	}
	return And{Children: clone(children)}, nil
}

// NewOr is the strict form of AnyOf: it requires at least two non-nil children.
func NewOr(children ...Criteria) (Or, error) {
	if err := checkChildren("or", children); err != nil {
		return Or{}, err
	}
	return Or{Children: clone(children)}, nil
}

func checkChildren(op string, children []Criteria) error {
	if len(children) < 2 {
		return &MalformedCriteriaError{
			Path:   op,
			Reason: fmt.Sprintf("%s needs at least two children, got %d", op, len(children)),
		}
	}
	for i, child := range children {
		if child == nil {
			return &MalformedCriteriaError{
				Path:   fmt.Sprintf("%s[%d]", op, i),
				Reason: "nil criteria",
			}
		}
	}
	return nil
}

func clone(children []Criteria) []Criteria {
	out := make([]Criteria, len(children))
	copy(out, children)
	return out
}

// =====================================
// Inspection
// =====================================

// Validate reports the first structural defect in c: a nil node, an empty
// composite or a value outside the closed set of variants.
func Validate(c Criteria) error {
	return validate(c, "$")
}

func validate(c Criteria, path string) error {
	switch node := c.(type) {
	case Leaf:
		if node.Kind == "" {
			return &MalformedCriteriaError{Path: path, Reason: "leaf without kind"}
		}
		return nil
	case And:
		return validateChildren("and", node.Children, path)
	case Or:
		return validateChildren("or", node.Children, path)
	case Xor:
		if err := validate(node.Left, path+".xor.left"); err != nil {
			return err
		}
		return validate(node.Right, path+".xor.right")
	case Invert:
		return validate(node.Inner, path+".not")
	case nil:
		return &MalformedCriteriaError{Path: path, Reason: "nil criteria"}
	default:
		return &MalformedCriteriaError{Path: path, Reason: fmt.Sprintf("unsupported criteria type %T", c)}
	}
}

func validateChildren(op string, children []Criteria, path string) error {
	if len(children) == 0 {
		return &MalformedCriteriaError{Path: path, Reason: "empty " + op}
	}
	for i, child := range children {
		if err := validate(child, fmt.Sprintf("%s.%s[%d]", path, op, i)); err != nil {
			return err
		}
	}
	return nil
}

// String renders c for diagnostics, e.g. and(nameEquals(Ann), not(ageGreaterThan(30))).
func String(c Criteria) string {
	var b strings.Builder
	render(&b, c)
	return b.String()
}

func render(b *strings.Builder, c Criteria) {
	switch node := c.(type) {
	case Leaf:
		fmt.Fprintf(b, "%s(%v)", node.Kind, node.Payload)
	case And:
		renderList(b, "and", node.Children)
	case Or:
		renderList(b, "or", node.Children)
	case Xor:
		renderList(b, "xor", []Criteria{node.Left, node.Right})
	case Invert:
		renderList(b, "not", []Criteria{node.Inner})
	case nil:
		b.WriteString("<nil>")
	default:
		fmt.Fprintf(b, "<%T>", c)
	}
}

func renderList(b *strings.Builder, op string, children []Criteria) {
	b.WriteString(op)
	b.WriteByte('(')
	for i, child := range children {
		if i > 0 {
			b.WriteString(", ")
		}
		render(b, child)
	}
	b.WriteByte(')')
}
