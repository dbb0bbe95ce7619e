package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_KeepsConditionOrder(t *testing.T) {
	q := Build(
		WithID("r1"),
		WithIDIn([]string{"a", "b"}),
		WithIDNotIn([]string{"c"}),
		WithWhere("cuisine = ? OR cuisine = ?", "thai", "lao"),
		WithLimit(5),
	)

	conds := q.Conditions()
	require.Len(t, conds, 4)

	ops := make([]Operator, len(conds))
	for i, c := range conds {
		ops[i] = c.Operator()
	}
	assert.Equal(t, []Operator{OpEqual, OpIn, OpNotIn, OpRaw}, ops)
	assert.Equal(t, []any{"r1"}, conds[0].Args())
	assert.Equal(t, "cuisine = ? OR cuisine = ?", conds[3].Column())
	assert.Equal(t, []any{"thai", "lao"}, conds[3].Args())
	assert.Equal(t, 5, q.LimitValue())
}

func TestWithAfterID(t *testing.T) {
	tests := []struct {
		name      string
		after     string
		wantConds int
	}{
		{name: "first page", after: "", wantConds: 0},
		{name: "next page", after: "m", wantConds: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Build(WithAfterID(tt.after))
			assert.Len(t, q.Conditions(), tt.wantConds)
			orders := q.Orders()
			require.Len(t, orders, 1)
			assert.Equal(t, "id", orders[0].Column())
			assert.True(t, orders[0].Ascending())
		})
	}
}

func TestQuery_AccessorsCopy(t *testing.T) {
	q := Build(WithName("soup"), WithOrderDesc("updated_at"))

	conds := q.Conditions()
	conds[0] = Condition{}
	assert.Equal(t, "name", q.Conditions()[0].Column())

	args := q.Conditions()[0].Args()
	args[0] = "stew"
	assert.Equal(t, []any{"soup"}, q.Conditions()[0].Args())

	assert.False(t, q.Orders()[0].Ascending())
}
