package search

import (
	"slices"
	"strings"

	"github.com/helixml/pantry/domain/recipe"
)

// Scope describes who is asking. Public and system recipes are always in
// scope; the viewer's own private recipes only when includePrivate is set.
type Scope struct {
	viewerID       string
	includePrivate bool
}

// NewScope creates a Scope.
func NewScope(viewerID string, includePrivate bool) Scope {
	return Scope{viewerID: strings.TrimSpace(viewerID), includePrivate: includePrivate}
}

// ViewerID returns the viewer's user ID, empty for anonymous callers.
func (s Scope) ViewerID() string { return s.viewerID }

// IncludePrivate reports whether the viewer's private recipes are in scope.
func (s Scope) IncludePrivate() bool { return s.includePrivate }

// IncludesOwnPrivate reports whether any private recipe can be in scope.
func (s Scope) IncludesOwnPrivate() bool {
	return s.includePrivate && s.viewerID != ""
}

// Filter restricts which recipes a ranked query may return. All set fields
// must match.
type Filter struct {
	cuisine    string
	difficulty string
	tags       []string
	excludeIDs []string
	scope      Scope
}

// FilterOption is a functional option for Filter.
type FilterOption func(*Filter)

// WithCuisine requires an exact (case-insensitive) cuisine match.
func WithCuisine(cuisine string) FilterOption {
	return func(f *Filter) { f.cuisine = strings.TrimSpace(cuisine) }
}

// WithDifficulty requires an exact (case-insensitive) difficulty match.
func WithDifficulty(difficulty string) FilterOption {
	return func(f *Filter) { f.difficulty = strings.TrimSpace(difficulty) }
}

// WithTags requires the recipe to carry every given tag.
func WithTags(tags ...string) FilterOption {
	return func(f *Filter) {
		f.tags = f.tags[:0:0]
		for _, t := range tags {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				f.tags = append(f.tags, t)
			}
		}
	}
}

// WithScope sets the visibility scope.
func WithScope(scope Scope) FilterOption {
	return func(f *Filter) { f.scope = scope }
}

// WithExcludeIDs removes the given recipes from results.
func WithExcludeIDs(ids ...string) FilterOption {
	return func(f *Filter) { f.excludeIDs = append(f.excludeIDs[:0:0], ids...) }
}

// NewFilter creates a Filter with options.
func NewFilter(opts ...FilterOption) Filter {
	f := Filter{}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// With returns a copy of f with further options applied.
func (f Filter) With(opts ...FilterOption) Filter {
	c := Filter{
		cuisine:    f.cuisine,
		difficulty: f.difficulty,
		tags:       append([]string(nil), f.tags...),
		excludeIDs: append([]string(nil), f.excludeIDs...),
		scope:      f.scope,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Cuisine returns the cuisine filter.
func (f Filter) Cuisine() string { return f.cuisine }

// Difficulty returns the difficulty filter.
func (f Filter) Difficulty() string { return f.difficulty }

// Tags returns the required tags, lowercased.
func (f Filter) Tags() []string { return append([]string(nil), f.tags...) }

// ExcludeIDs returns the excluded recipe IDs.
func (f Filter) ExcludeIDs() []string { return append([]string(nil), f.excludeIDs...) }

// Scope returns the visibility scope.
func (f Filter) Scope() Scope { return f.scope }

// Matches reports whether r satisfies the filter, including visibility.
func (f Filter) Matches(r recipe.Recipe) bool {
	if !r.VisibleTo(f.scope.viewerID, f.scope.includePrivate) {
		return false
	}
	if slices.Contains(f.excludeIDs, r.ID()) {
		return false
	}
	if f.cuisine != "" && !strings.EqualFold(f.cuisine, r.Cuisine()) {
		return false
	}
	if f.difficulty != "" && !strings.EqualFold(f.difficulty, r.Difficulty()) {
		return false
	}
	for _, want := range f.tags {
		if !slices.ContainsFunc(r.Tags(), func(t string) bool { return strings.EqualFold(t, want) }) {
			return false
		}
	}
	return true
}
