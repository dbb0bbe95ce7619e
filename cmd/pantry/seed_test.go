package main

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/pantry/domain/recipe"
)

func TestParseSeed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	input := `
- id: r-curry
  name: Thai green curry
  cuisine: thai
  difficulty: easy
  tags: [Curry, spicy]
  ingredients: [coconut milk, basil]
- name: Grandma's pie
  visibility: private
  owner: alice
  updated_at: 2026-01-02T03:04:05Z
- name: House bread
  visibility: system
`
	recipes, err := parseSeed(strings.NewReader(input), now)
	require.NoError(t, err)
	require.Len(t, recipes, 3)

	curry := recipes[0]
	assert.Equal(t, "r-curry", curry.ID())
	assert.Equal(t, recipe.VisibilityPublic, curry.Visibility())
	assert.Equal(t, []string{"coconut milk", "basil"}, curry.Ingredients())
	assert.Equal(t, now, curry.CreatedAt())
	assert.Equal(t, now, curry.UpdatedAt())

	pie := recipes[1]
	_, err = uuid.Parse(pie.ID())
	assert.NoError(t, err, "missing ids are filled with UUIDs")
	assert.Equal(t, recipe.VisibilityPrivate, pie.Visibility())
	assert.Equal(t, "alice", pie.OwnerID())
	assert.True(t, pie.UpdatedAt().Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	bread := recipes[2]
	assert.Equal(t, recipe.SystemOwner, bread.OwnerID())
}

func TestParseSeed_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing name", "- cuisine: thai\n", "name is required"},
		{"duplicate id", "- {id: a, name: A}\n- {id: a, name: B}\n", `duplicate id "a"`},
		{"bad visibility", "- {name: A, visibility: friends}\n", "unknown visibility"},
		{"private without owner", "- {name: A, visibility: private}\n", "need an owner"},
		{"not a list", "name: A\n", "parse seed file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSeed(strings.NewReader(tt.input), time.Now())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseSeed_Empty(t *testing.T) {
	recipes, err := parseSeed(strings.NewReader(""), time.Now())
	require.NoError(t, err)
	assert.Empty(t, recipes)
}
