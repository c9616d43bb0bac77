package criteria

// Predicate is a typed leaf definition. It ties a Kind to the payload type
// its translators expect, so leaves and their rules cannot drift apart.
//
//	var NameEquals = criteria.Define[string]("nameEquals")
//	c := criteria.AllOf(NameEquals.Of("Ann"), criteria.Not(AgeGreaterThan.Of(30)))
type Predicate[P any] struct {
	kind Kind
}

// Define declares a typed leaf predicate with the given discriminator.
func Define[P any](kind Kind) Predicate[P] {
	return Predicate[P]{kind: kind}
}

// Kind returns the discriminator of the predicate.
func (p Predicate[P]) Kind() Kind {
	return p.kind
}

// Of builds a leaf for this predicate.
func (p Predicate[P]) Of(payload P) Leaf {
	return Leaf{Kind: p.kind, Payload: payload}
}
