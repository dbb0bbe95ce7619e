// Package recipe provides the read-only recipe entity the search engine consumes.
package recipe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SystemOwner is the owner reference carried by built-in recipes.
const SystemOwner = "system"

// ErrNotFound indicates the requested recipe does not exist.
var ErrNotFound = errors.New("recipe not found")

// Visibility controls who may see a recipe.
type Visibility string

// Visibility values.
const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilitySystem  Visibility = "system"
)

// ParseVisibility converts a string into a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToLower(strings.TrimSpace(s))); v {
	case VisibilityPublic, VisibilityPrivate, VisibilitySystem:
		return v, nil
	case "":
		return VisibilityPrivate, nil
	default:
		return "", fmt.Errorf("unknown visibility %q", s)
	}
}

// String implements fmt.Stringer.
func (v Visibility) String() string { return string(v) }

// Recipe is a recipe as owned by the CRUD collaborator.
type Recipe struct {
	id          string
	ownerID     string
	name        string
	description string
	cuisine     string
	difficulty  string
	tags        []string
	ingredients []string
	visibility  Visibility
	createdAt   time.Time
	updatedAt   time.Time
}

// Option configures a Recipe during construction.
type Option func(*Recipe)

// WithDescription sets the description.
func WithDescription(description string) Option {
	return func(r *Recipe) { r.description = description }
}

// WithCuisine sets the cuisine.
func WithCuisine(cuisine string) Option {
	return func(r *Recipe) { r.cuisine = cuisine }
}

// WithDifficulty sets the difficulty.
func WithDifficulty(difficulty string) Option {
	return func(r *Recipe) { r.difficulty = difficulty }
}

// WithTags sets the tags.
func WithTags(tags ...string) Option {
	return func(r *Recipe) { r.tags = append([]string(nil), tags...) }
}

// WithIngredients sets the ingredient lines in recipe order.
func WithIngredients(ingredients ...string) Option {
	return func(r *Recipe) { r.ingredients = append([]string(nil), ingredients...) }
}

// WithOwner sets the owner reference.
func WithOwner(ownerID string) Option {
	return func(r *Recipe) { r.ownerID = ownerID }
}

// WithVisibility sets the visibility.
func WithVisibility(v Visibility) Option {
	return func(r *Recipe) { r.visibility = v }
}

// WithTimestamps sets the lifecycle timestamps.
func WithTimestamps(createdAt, updatedAt time.Time) Option {
	return func(r *Recipe) {
		r.createdAt = createdAt
		r.updatedAt = updatedAt
	}
}

// New creates a Recipe. Recipes default to private visibility.
// System recipes are always owned by SystemOwner.
func New(id, name string, opts ...Option) Recipe {
	r := Recipe{
		id:          id,
		name:        name,
		tags:        []string{},
		ingredients: []string{},
		visibility:  VisibilityPrivate,
	}
	for _, opt := range opts {
		opt(&r)
	}
	if r.visibility == VisibilitySystem {
		r.ownerID = SystemOwner
	}
	return r
}

// ID returns the recipe identifier.
func (r Recipe) ID() string { return r.id }

// OwnerID returns the owner reference.
func (r Recipe) OwnerID() string { return r.ownerID }

// Name returns the recipe name.
func (r Recipe) Name() string { return r.name }

// Description returns the description.
func (r Recipe) Description() string { return r.description }

// Cuisine returns the cuisine.
func (r Recipe) Cuisine() string { return r.cuisine }

// Difficulty returns the difficulty.
func (r Recipe) Difficulty() string { return r.difficulty }

// Tags returns a copy of the tags.
func (r Recipe) Tags() []string {
	return append([]string(nil), r.tags...)
}

// Ingredients returns a copy of the ingredient lines.
func (r Recipe) Ingredients() []string {
	return append([]string(nil), r.ingredients...)
}

// Visibility returns the visibility.
func (r Recipe) Visibility() Visibility { return r.visibility }

// CreatedAt returns the creation time.
func (r Recipe) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last update time.
func (r Recipe) UpdatedAt() time.Time { return r.updatedAt }

// VisibleTo reports whether viewerID may see the recipe. Private recipes
// are only visible to their owner, and only when includePrivate is set.
func (r Recipe) VisibleTo(viewerID string, includePrivate bool) bool {
	switch r.visibility {
	case VisibilityPublic, VisibilitySystem:
		return true
	default:
		return includePrivate && viewerID != "" && viewerID == r.ownerID
	}
}
