package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/repository"
	"github.com/helixml/pantry/internal/database"
)

// RecipeStore reads recipes for the engine. SaveAll and Delete exist for
// fixtures and the seed command; the engine itself never writes recipes.
type RecipeStore struct {
	database.Repository[recipe.Recipe, RecipeModel]
	db database.Database
}

// NewRecipeStore creates a RecipeStore.
func NewRecipeStore(db database.Database) RecipeStore {
	repo := database.NewRepository[recipe.Recipe, RecipeModel](db, recipeMapper{}, "recipe").
		WithUpsert([]string{"id"}, []string{
			"owner_id", "name", "description", "cuisine", "difficulty",
			"tags", "ingredients", "visibility", "updated_at",
		})
	return RecipeStore{Repository: repo, db: db}
}

// Get returns a recipe by ID.
func (s RecipeStore) Get(ctx context.Context, id string) (recipe.Recipe, error) {
	r, err := s.FindOne(ctx, repository.WithID(id))
	if errors.Is(err, database.ErrNotFound) {
		return recipe.Recipe{}, fmt.Errorf("%w: %s", recipe.ErrNotFound, id)
	}
	if err != nil {
		return recipe.Recipe{}, err
	}
	return r, nil
}

// SaveAll inserts or replaces recipes in a single transaction.
func (s RecipeStore) SaveAll(ctx context.Context, recipes []recipe.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	return database.InTransaction(ctx, s.db, func(ctx context.Context) error {
		for _, r := range recipes {
			if err := s.Save(ctx, r); err != nil {
				return fmt.Errorf("recipe %s: %w", r.ID(), err)
			}
		}
		return nil
	})
}

// Delete removes a recipe. Its embedding records go with it.
func (s RecipeStore) Delete(ctx context.Context, id string) error {
	_, err := s.DeleteBy(ctx, repository.WithID(id))
	return err
}
