package recipe

import (
	"context"

	"github.com/helixml/pantry/domain/repository"
)

// Store is the read side of the recipe collaborator.
type Store interface {
	// Get returns a recipe by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (Recipe, error)

	// Find returns recipes matching the given options.
	Find(ctx context.Context, options ...repository.Option) ([]Recipe, error)

	// Count returns the number of recipes matching the given options.
	Count(ctx context.Context, options ...repository.Option) (int64, error)
}
