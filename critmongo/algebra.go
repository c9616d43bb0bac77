package critmongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lemmego/criteria"
)

// Algebra combines MongoDB query filters.
type Algebra struct{}

// And joins conds with $and.
func (Algebra) And(conds ...bson.D) bson.D {
	return bson.D{{Key: "$and", Value: array(conds)}}
}

// Or joins conds with $or.
func (Algebra) Or(conds ...bson.D) bson.D {
	return bson.D{{Key: "$or", Value: array(conds)}}
}

// Not negates cond. A single-element $nor negates any filter, whereas $not
// only applies to a field operator.
func (Algebra) Not(cond bson.D) bson.D {
	return bson.D{{Key: "$nor", Value: bson.A{cond}}}
}

func array(conds []bson.D) bson.A {
	a := make(bson.A, len(conds))
	for i, c := range conds {
		a[i] = c
	}
	return a
}

// Registry is the translator registry of critmongo repositories.
type Registry = criteria.Registry[mongo.Pipeline, bson.D]

// Rule is a critmongo registry entry.
type Rule = criteria.Rule[mongo.Pipeline, bson.D]

// NewRegistry builds a registry over the MongoDB filter algebra.
func NewRegistry(name string, rules ...Rule) (*Registry, error) {
	return criteria.NewRegistry[mongo.Pipeline, bson.D](name, Algebra{}, rules...)
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(name string, rules ...Rule) *Registry {
	return criteria.MustRegistry[mongo.Pipeline, bson.D](name, Algebra{}, rules...)
}
