package pantry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/pantry"
	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/internal/config"
	"github.com/helixml/pantry/internal/database"
	"github.com/helixml/pantry/internal/log"
	"github.com/helixml/pantry/internal/testembed"
)

var public = recipe.WithVisibility(recipe.VisibilityPublic)

func fixtures() []recipe.Recipe {
	return []recipe.Recipe{
		recipe.New("r-green-curry", "Thai green curry", recipe.WithCuisine("thai"), recipe.WithTags("curry", "spicy"), public),
		recipe.New("r-pad-thai", "Pad thai noodles", recipe.WithCuisine("thai"), public),
		recipe.New("r-choc-cake", "Chocolate cake", recipe.WithCuisine("french"), recipe.WithTags("dessert"), public),
	}
}

func newClient(t *testing.T, opts ...pantry.Option) *pantry.Client {
	t.Helper()
	base := []pantry.Option{
		pantry.WithSQLite(":memory:"),
		pantry.WithEmbedder(testembed.New()),
		pantry.WithModel("vocab", len(testembed.Vocabulary)),
		pantry.WithEmbeddingRetries(0),
		pantry.WithLogger(log.Discard()),
	}
	client, err := pantry.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNew_RequiresDatabase(t *testing.T) {
	_, err := pantry.New(pantry.WithEmbedder(testembed.New()), pantry.WithModel("vocab", 5))
	assert.ErrorIs(t, err, pantry.ErrNoDatabase)
}

func TestNew_CustomEmbedderRequiresModel(t *testing.T) {
	_, err := pantry.New(pantry.WithSQLite(":memory:"), pantry.WithEmbedder(testembed.New()))
	assert.ErrorIs(t, err, pantry.ErrNoModel)
}

func TestNew_RejectsInvalidFusionWeights(t *testing.T) {
	_, err := pantry.New(
		pantry.WithSQLite(":memory:"),
		pantry.WithEmbedder(testembed.New()),
		pantry.WithModel("vocab", 5),
		pantry.WithFusionWeights(-1, 0.3),
	)
	assert.Error(t, err)
}

func TestClient_BackfillThenSearch(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	require.NoError(t, client.Seed(ctx, fixtures()...))

	report, err := client.Backfill.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Embedded)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.Embeddings)
	assert.Equal(t, int64(3), status.Recipes)
	assert.Equal(t, "vocab", status.Model.Name())

	results, err := client.Search.Semantic(ctx, "thai curry", search.NewFilter())
	require.NoError(t, err)
	require.NotZero(t, results.Len())
	assert.Equal(t, "r-green-curry", results.Hits()[0].RecipeID())
	assert.NotContains(t, results.RecipeIDs(), "r-choc-cake")

	similar, err := client.Similar.Find(ctx, "r-green-curry")
	require.NoError(t, err)
	assert.NotContains(t, similar.RecipeIDs(), "r-green-curry")
}

func TestClient_HybridWithBleve(t *testing.T) {
	ctx := context.Background()
	client := newClient(t, pantry.WithLexical(config.LexicalBleve, ""))

	require.NoError(t, client.Seed(ctx, fixtures()...))
	_, err := client.Backfill.Run(ctx)
	require.NoError(t, err)

	require.True(t, client.Search.HybridAvailable())
	results, err := client.Search.Hybrid(ctx, "noodles", search.NewFilter())
	require.NoError(t, err)
	require.NotZero(t, results.Len())
	top := results.Hits()[0]
	assert.Equal(t, "r-pad-thai", top.RecipeID())
	assert.True(t, top.Sources().Has(search.SourceSemantic|search.SourceLexical))
}

func TestClient_Close(t *testing.T) {
	ctx := context.Background()
	client, err := pantry.New(
		pantry.WithSQLite(":memory:"),
		pantry.WithEmbedder(testembed.New()),
		pantry.WithModel("vocab", len(testembed.Vocabulary)),
		pantry.WithLogger(log.Discard()),
	)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Close(), pantry.ErrClientClosed)

	_, err = client.Search.Semantic(ctx, "curry", search.NewFilter())
	assert.ErrorIs(t, err, pantry.ErrClientClosed)
	_, err = client.Similar.Find(ctx, "r-green-curry")
	assert.ErrorIs(t, err, pantry.ErrClientClosed)
	_, err = client.Status(ctx)
	assert.ErrorIs(t, err, pantry.ErrClientClosed)
}

func TestClient_DimensionProbe(t *testing.T) {
	client, err := pantry.New(
		pantry.WithSQLite(":memory:"),
		pantry.WithEmbedder(testembed.New()),
		pantry.WithModel("vocab", 0),
		pantry.WithLogger(log.Discard()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, len(testembed.Vocabulary), client.Model().Dimension())
}

func TestClient_DimensionProbeFailure(t *testing.T) {
	_, err := pantry.New(
		pantry.WithSQLite(":memory:"),
		pantry.WithEmbedder(failing()),
		pantry.WithModel("vocab", 0),
		pantry.WithEmbeddingRetries(0),
		pantry.WithLogger(log.Discard()),
	)
	assert.ErrorIs(t, err, search.ErrEmbeddingUnavailable)
}

func TestNew_ConnectionPoolIgnoredForSQLite(t *testing.T) {
	client := newClient(t, pantry.WithConnectionPool(16, 4, time.Minute))

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.Zero(t, status.Embeddings)
}

type recordingCloser struct {
	closed int
	err    error
}

func (c *recordingCloser) Close() error {
	c.closed++
	return c.err
}

func TestNew_FailureReleasesResources(t *testing.T) {
	tests := []struct {
		name    string
		opts    []pantry.Option
		wantErr error
	}{
		{
			name: "dimension probe fails",
			opts: []pantry.Option{
				pantry.WithSQLite(":memory:"),
				pantry.WithEmbedder(failing()),
				pantry.WithModel("vocab", 0),
			},
			wantErr: search.ErrEmbeddingUnavailable,
		},
		{
			name: "database does not open",
			opts: []pantry.Option{
				pantry.WithPostgres("mysql://localhost/pantry"),
				pantry.WithEmbedder(testembed.New()),
				pantry.WithModel("vocab", len(testembed.Vocabulary)),
			},
			wantErr: database.ErrUnsupportedDriver,
		},
		{
			name: "model missing",
			opts: []pantry.Option{
				pantry.WithSQLite(":memory:"),
				pantry.WithEmbedder(testembed.New()),
			},
			wantErr: pantry.ErrNoModel,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closer := &recordingCloser{}
			opts := append(tt.opts,
				pantry.WithCloser(closer),
				pantry.WithEmbeddingRetries(0),
				pantry.WithLogger(log.Discard()),
			)
			_, err := pantry.New(opts...)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, closer.closed)
		})
	}
}

func TestNew_FailureJoinsCloseErrors(t *testing.T) {
	errClose := errors.New("close failed")
	closer := &recordingCloser{err: errClose}

	_, err := pantry.New(
		pantry.WithSQLite(":memory:"),
		pantry.WithEmbedder(failing()),
		pantry.WithModel("vocab", 0),
		pantry.WithEmbeddingRetries(0),
		pantry.WithCloser(closer),
		pantry.WithLogger(log.Discard()),
	)
	require.ErrorIs(t, err, search.ErrEmbeddingUnavailable)
	require.ErrorIs(t, err, errClose)
	assert.Equal(t, 1, closer.closed)
}

func failing() *testembed.Vocab {
	e := testembed.New()
	e.SetFailing(true)
	return e
}
