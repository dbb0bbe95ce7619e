package repository

// WithID filters by the "id" column.
func WithID(id string) Option {
	return WithCondition("id", id)
}

// WithIDIn filters by the "id" column using IN.
func WithIDIn(ids []string) Option {
	return WithConditionIn("id", ids)
}

// WithIDNotIn excludes rows whose "id" is in ids.
func WithIDNotIn(ids []string) Option {
	return WithConditionNotIn("id", ids)
}

// WithAfterID pages by the "id" column, returning rows whose id sorts after id.
// Results are ordered by id ascending.
func WithAfterID(id string) Option {
	return func(q Query) Query {
		if id != "" {
			q = WithGreaterThan("id", id)(q)
		}
		return WithOrderAsc("id")(q)
	}
}

// WithName filters by the "name" column.
func WithName(name string) Option {
	return WithCondition("name", name)
}
