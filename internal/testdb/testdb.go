// Package testdb opens migrated in-memory SQLite databases for tests.
package testdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/infrastructure/persistence"
	"github.com/helixml/pantry/internal/database"
)

// New returns an empty database holding the recipes and recipe_embeddings
// tables. It is closed when the test ends.
func New(t testing.TB) database.Database {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), "sqlite:///:memory:")
	require.NoError(t, err, "open in-memory database")
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, persistence.AutoMigrate(db), "migrate")
	return db
}

// WithRecipes returns a database seeded with recipes and a store reading it.
func WithRecipes(t testing.TB, recipes ...recipe.Recipe) (database.Database, persistence.RecipeStore) {
	t.Helper()
	db := New(t)
	store := persistence.NewRecipeStore(db)
	require.NoError(t, store.SaveAll(context.Background(), recipes), "seed recipes")
	return db, store
}
