package critgorm

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lemmego/criteria"
)

// Algebra combines GORM clause expressions.
type Algebra struct{}

// And joins conds with AND.
func (Algebra) And(conds ...clause.Expression) clause.Expression {
	if len(conds) == 1 {
		return conds[0]
	}
	return clause.And(conds...)
}

// Or joins conds with OR. A one-member OrConditions would be rendered as
// "OR cond" against its neighbours in an AND list, so it is unwrapped.
func (Algebra) Or(conds ...clause.Expression) clause.Expression {
	if len(conds) == 1 {
		return conds[0]
	}
	return clause.Or(conds...)
}

// Not wraps cond in NOT (...). clause.Not would distribute over the members
// of a compound condition.
func (Algebra) Not(cond clause.Expression) clause.Expression {
	return clause.Expr{SQL: "NOT (?)", Vars: []interface{}{cond}}
}

// Registry is the translator registry of GORM repositories.
type Registry = criteria.Registry[*gorm.DB, clause.Expression]

// Rule is a GORM registry entry.
type Rule = criteria.Rule[*gorm.DB, clause.Expression]

// NewRegistry builds a registry over the GORM algebra.
func NewRegistry(name string, rules ...Rule) (*Registry, error) {
	return criteria.NewRegistry[*gorm.DB, clause.Expression](name, Algebra{}, rules...)
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(name string, rules ...Rule) *Registry {
	return criteria.MustRegistry[*gorm.DB, clause.Expression](name, Algebra{}, rules...)
}
