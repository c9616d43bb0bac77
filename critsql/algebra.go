package critsql

import (
	"github.com/Masterminds/squirrel"

	"github.com/lemmego/criteria"
)

// Algebra combines squirrel conditions.
type Algebra struct{}

// And joins conds with AND.
func (Algebra) And(conds ...squirrel.Sqlizer) squirrel.Sqlizer {
	return squirrel.And(conds)
}

// Or joins conds with OR.
func (Algebra) Or(conds ...squirrel.Sqlizer) squirrel.Sqlizer {
	return squirrel.Or(conds)
}

// Not negates cond.
func (Algebra) Not(cond squirrel.Sqlizer) squirrel.Sqlizer {
	return squirrel.Expr("NOT (?)", cond)
}

// Registry is the translator registry of critsql repositories.
type Registry = criteria.Registry[squirrel.SelectBuilder, squirrel.Sqlizer]

// Rule is a critsql registry entry.
type Rule = criteria.Rule[squirrel.SelectBuilder, squirrel.Sqlizer]

// NewRegistry builds a registry over the squirrel algebra.
func NewRegistry(name string, rules ...Rule) (*Registry, error) {
	return criteria.NewRegistry[squirrel.SelectBuilder, squirrel.Sqlizer](name, Algebra{}, rules...)
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(name string, rules ...Rule) *Registry {
	return criteria.MustRegistry[squirrel.SelectBuilder, squirrel.Sqlizer](name, Algebra{}, rules...)
}
