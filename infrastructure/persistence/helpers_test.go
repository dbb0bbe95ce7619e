package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/internal/database"
)

// newTestDB creates a migrated in-memory SQLite database for testing.
// Cannot use testdb package here due to import cycle (testdb imports persistence).
func newTestDB(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), "sqlite:///:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, AutoMigrate(db))
	return db
}

func testModel(t *testing.T, name string, dim int) search.Model {
	t.Helper()
	m, err := search.NewModel(name, dim)
	require.NoError(t, err)
	return m
}

func seedRecipes(t *testing.T, db database.Database, recipes ...recipe.Recipe) RecipeStore {
	t.Helper()
	store := NewRecipeStore(db)
	require.NoError(t, store.SaveAll(context.Background(), recipes))
	return store
}

func publicRecipe(id, name string, opts ...recipe.Option) recipe.Recipe {
	opts = append([]recipe.Option{recipe.WithOwner("chef"), recipe.WithVisibility(recipe.VisibilityPublic)}, opts...)
	return recipe.New(id, name, opts...)
}
