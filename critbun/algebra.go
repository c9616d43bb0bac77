package critbun

import (
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/lemmego/criteria"
)

// Algebra combines Bun query fragments. Every operand is parenthesised, so
// leaf translators may return any boolean SQL expression.
type Algebra struct{}

// And joins conds with AND.
func (Algebra) And(conds ...schema.QueryAppender) schema.QueryAppender {
	return join(" AND ", conds)
}

// Or joins conds with OR.
func (Algebra) Or(conds ...schema.QueryAppender) schema.QueryAppender {
	return join(" OR ", conds)
}

// Not negates cond.
func (Algebra) Not(cond schema.QueryAppender) schema.QueryAppender {
	return bun.SafeQuery("NOT (?)", cond)
}

func join(sep string, conds []schema.QueryAppender) schema.QueryAppender {
	parts := make([]string, len(conds))
	args := make([]interface{}, len(conds))
	for i, cond := range conds {
		parts[i] = "(?)"
		args[i] = cond
	}
	return bun.SafeQuery(strings.Join(parts, sep), args...)
}

// Registry is the translator registry of Bun repositories.
type Registry = criteria.Registry[*bun.SelectQuery, schema.QueryAppender]

// Rule is a Bun registry entry.
type Rule = criteria.Rule[*bun.SelectQuery, schema.QueryAppender]

// NewRegistry builds a registry over the Bun algebra.
func NewRegistry(name string, rules ...Rule) (*Registry, error) {
	return criteria.NewRegistry[*bun.SelectQuery, schema.QueryAppender](name, Algebra{}, rules...)
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(name string, rules ...Rule) *Registry {
	return criteria.MustRegistry[*bun.SelectQuery, schema.QueryAppender](name, Algebra{}, rules...)
}
