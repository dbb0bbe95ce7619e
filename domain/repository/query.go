// Package repository describes store lookups as composable options that
// persistence adapters translate into queries.
package repository

// Option refines a Query.
type Option func(Query) Query

// Query collects filters, ordering and a row limit.
type Query struct {
	conditions []Condition
	orders     []Order
	limit      int
}

// Build applies options in order to an empty Query.
func Build(options ...Option) Query {
	var q Query
	for _, opt := range options {
		q = opt(q)
	}
	return q
}

// Conditions returns a copy of the filters.
func (q Query) Conditions() []Condition {
	return append([]Condition(nil), q.conditions...)
}

// Orders returns a copy of the sort keys.
func (q Query) Orders() []Order {
	return append([]Order(nil), q.orders...)
}

// LimitValue returns the row limit, 0 for none.
func (q Query) LimitValue() int { return q.limit }

// Operator is the comparison a Condition applies.
type Operator string

// Operators. OpRaw conditions carry a SQL fragment in place of a column.
const (
	OpEqual   Operator = "="
	OpIn      Operator = "IN"
	OpNotIn   Operator = "NOT IN"
	OpGreater Operator = ">"
	OpRaw     Operator = ""
)

// Condition is one filter.
type Condition struct {
	column string
	op     Operator
	args   []any
}

// Column returns the column, or the SQL fragment of a raw condition.
func (c Condition) Column() string { return c.column }

// Operator returns the comparison.
func (c Condition) Operator() Operator { return c.op }

// Args returns the bind arguments.
func (c Condition) Args() []any { return append([]any(nil), c.args...) }

// Order is one sort key.
type Order struct {
	column    string
	ascending bool
}

// Column returns the sort column.
func (o Order) Column() string { return o.column }

// Ascending reports ASC ordering.
func (o Order) Ascending() bool { return o.ascending }

func where(column string, op Operator, args ...any) Option {
	return func(q Query) Query {
		q.conditions = append(q.conditions, Condition{column: column, op: op, args: args})
		return q
	}
}

// WithCondition filters column = value.
func WithCondition(column string, value any) Option { return where(column, OpEqual, value) }

// WithConditionIn filters column IN values. values must be a slice.
func WithConditionIn(column string, values any) Option { return where(column, OpIn, values) }

// WithConditionNotIn filters column NOT IN values.
func WithConditionNotIn(column string, values any) Option { return where(column, OpNotIn, values) }

// WithGreaterThan filters column > value.
func WithGreaterThan(column string, value any) Option { return where(column, OpGreater, value) }

// WithWhere adds a raw SQL fragment with bind arguments.
func WithWhere(fragment string, args ...any) Option { return where(fragment, OpRaw, args...) }

// WithLimit caps the number of rows.
func WithLimit(n int) Option {
	return func(q Query) Query {
		q.limit = n
		return q
	}
}

// WithOrderAsc sorts by column ascending.
func WithOrderAsc(column string) Option { return orderBy(column, true) }

// WithOrderDesc sorts by column descending.
func WithOrderDesc(column string) Option { return orderBy(column, false) }

func orderBy(column string, asc bool) Option {
	return func(q Query) Query {
		q.orders = append(q.orders, Order{column: column, ascending: asc})
		return q
	}
}
