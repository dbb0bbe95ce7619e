package search

import (
	"strings"

	"github.com/helixml/pantry/domain/recipe"
)

// MaxSynthesizedIngredients caps how many leading ingredients enter the
// embedding text.
const MaxSynthesizedIngredients = 10

// Synthesize builds the canonical embedding text for a recipe: name,
// description, cuisine, tags and the leading ingredients, joined by ". ".
// Blank parts are omitted; a recipe with no usable fields yields "".
func Synthesize(r recipe.Recipe) string {
	parts := make([]string, 0, 5)

	if name := strings.TrimSpace(r.Name()); name != "" {
		parts = append(parts, name)
	}
	if description := strings.TrimSpace(r.Description()); description != "" {
		parts = append(parts, description)
	}
	if cuisine := strings.TrimSpace(r.Cuisine()); cuisine != "" {
		parts = append(parts, "Cuisine: "+cuisine)
	}
	if tags := nonBlank(r.Tags()); len(tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(tags, ", "))
	}
	ingredients := nonBlank(r.Ingredients())
	if len(ingredients) > MaxSynthesizedIngredients {
		ingredients = ingredients[:MaxSynthesizedIngredients]
	}
	if len(ingredients) > 0 {
		parts = append(parts, "Ingredients: "+strings.Join(ingredients, ", "))
	}

	return strings.Join(parts, ". ")
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
