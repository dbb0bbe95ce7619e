package v1_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helixml/pantry"
	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/internal/log"
	"github.com/helixml/pantry/internal/testembed"
)

var public = recipe.WithVisibility(recipe.VisibilityPublic)

func fixtures() []recipe.Recipe {
	return []recipe.Recipe{
		recipe.New("r-green-curry", "Thai green curry",
			recipe.WithCuisine("thai"), recipe.WithDifficulty("easy"), recipe.WithTags("curry", "spicy"), public),
		recipe.New("r-pad-thai", "Pad thai noodles", recipe.WithCuisine("thai"), recipe.WithDifficulty("medium"), public),
		recipe.New("r-choc-cake", "Chocolate cake", recipe.WithCuisine("french"), recipe.WithTags("dessert"), public),
		recipe.New("r-secret", "Secret curry noodles",
			recipe.WithOwner("alice"), recipe.WithVisibility(recipe.VisibilityPrivate)),
	}
}

// newClient returns a client over an in-memory database, seeded with
// fixtures and fully backfilled.
func newClient(t *testing.T, embedder *testembed.Vocab) *pantry.Client {
	t.Helper()
	client, err := pantry.New(
		pantry.WithSQLite(":memory:"),
		pantry.WithEmbedder(embedder),
		pantry.WithModel("vocab", embedder.Dimension()),
		pantry.WithEmbeddingRetries(0),
		pantry.WithLogger(log.Discard()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.NoError(t, client.Seed(ctx, fixtures()...))
	_, err = client.Backfill.Run(ctx)
	require.NoError(t, err)
	return client
}
