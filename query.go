package criteria

import "strings"

// =====================================
// Find Options
// =====================================

// FindOption shapes the result set of a Find call: ordering and pagination
// layered on top of the translated condition.
type FindOption interface {
	Apply(query *FindQuery)
}

// FindQuery collects the options of a single Find call.
type FindQuery struct {
	Orders []Order
	Limit  *int
	Offset *int
}

// NewFindQuery applies opts in order and returns the result.
func NewFindQuery(opts ...FindOption) *FindQuery {
	query := &FindQuery{Orders: make([]Order, 0)}
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(query)
		}
	}
	return query
}

// OrderOption implements FindOption for ordering
type OrderOption struct {
	Order Order
}

func (o OrderOption) Apply(query *FindQuery) {
	query.Orders = append(query.Orders, o.Order)
}

// LimitOption implements FindOption for limiting results
type LimitOption struct {
	Count int
}

func (o LimitOption) Apply(query *FindQuery) {
	if o.Count <= 0 {
		return
	}
	query.Limit = &o.Count
}

// OffsetOption implements FindOption for result offset
type OffsetOption struct {
	Count int
}

func (o OffsetOption) Apply(query *FindQuery) {
	if o.Count <= 0 {
		return
	}
	query.Offset = &o.Count
}

// OrderBy creates an ordering option. Directions other than DESC (in any case)
// sort ascending.
func OrderBy(field string, direction OrderDirection) FindOption {
	if strings.EqualFold(string(direction), string(OrderDesc)) {
		direction = OrderDesc
	} else {
		direction = OrderAsc
	}
	return OrderOption{
		Order: Order{
			Field:     field,
			Direction: direction,
		},
	}
}

// Limit creates a limit option. Non-positive counts are ignored.
func Limit(count int) FindOption {
	return LimitOption{Count: count}
}

// Offset creates an offset option. Non-positive counts are ignored.
func Offset(count int) FindOption {
	return OffsetOption{Count: count}
}
