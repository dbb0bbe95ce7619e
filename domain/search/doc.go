// Package search provides the domain types of the recipe search engine:
// embedding records, the active model, filters, ranked hits, hybrid fusion,
// and the store and provider contracts the engine depends on.
package search
