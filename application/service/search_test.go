package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/search"
)

func TestSearch_Semantic(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedAll(t)

	tests := []struct {
		name           string
		filter         search.Filter
		opts           []search.Option
		want           []string
		wantConsidered int
	}{
		{
			name:           "ranks by similarity",
			filter:         search.NewFilter(),
			opts:           []search.Option{search.WithMinSimilarity(0.4)},
			want:           []string{"r-curry", "r-padthai"},
			wantConsidered: 3,
		},
		{
			name:           "default floor",
			filter:         search.NewFilter(),
			want:           []string{"r-curry"},
			wantConsidered: 3,
		},
		{
			name:           "limit",
			filter:         search.NewFilter(),
			opts:           []search.Option{search.WithMinSimilarity(0.4), search.WithLimit(1)},
			want:           []string{"r-curry"},
			wantConsidered: 3,
		},
		{
			name:           "owner includes private",
			filter:         search.NewFilter(),
			opts:           []search.Option{search.WithMinSimilarity(0.4), search.WithViewer("alice"), search.WithIncludePrivate(true)},
			want:           []string{"r-curry", "r-private", "r-padthai"},
			wantConsidered: 4,
		},
		{
			name:           "other users never see private",
			filter:         search.NewFilter(),
			opts:           []search.Option{search.WithMinSimilarity(0.4), search.WithViewer("bob"), search.WithIncludePrivate(true)},
			want:           []string{"r-curry", "r-padthai"},
			wantConsidered: 3,
		},
		{
			name:           "cuisine filter",
			filter:         search.NewFilter(search.WithCuisine("french")),
			opts:           []search.Option{search.WithMinSimilarity(-1)},
			want:           []string{"r-cake"},
			wantConsidered: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := k.search.Semantic(ctx, "thai curry", tt.filter, tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hitIDs(results))
			assert.Equal(t, tt.wantConsidered, results.Considered())
		})
	}
}

func TestSearch_SemanticHitsCarrySummaries(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedAll(t)

	results, err := k.search.Semantic(ctx, "thai curry", search.NewFilter(), search.WithMinSimilarity(0.9))
	require.NoError(t, err)
	require.Equal(t, 1, results.Len())

	hit := results.Hits()[0]
	assert.InDelta(t, 1.0, hit.Similarity(), 1e-6)
	assert.Equal(t, "Thai Curry", hit.Summary().Name)
	assert.Equal(t, "Thai", hit.Summary().Cuisine)
	assert.Equal(t, recipe.VisibilityPublic, hit.Summary().Visibility)
	assert.True(t, hit.Sources().Has(search.SourceSemantic))
}

func TestSearch_FloorHoldsForEveryHit(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedAll(t)

	for _, floor := range []float64{-1, 0, 0.4, 0.7, 1} {
		semantic, err := k.search.Semantic(ctx, "thai curry noodles", search.NewFilter(), search.WithMinSimilarity(floor))
		require.NoError(t, err)
		hybrid, err := k.search.Hybrid(ctx, "thai curry noodles", search.NewFilter(), search.WithMinSimilarity(floor))
		require.NoError(t, err)
		for _, h := range append(semantic.Hits(), hybrid.Hits()...) {
			assert.GreaterOrEqual(t, h.Similarity(), floor)
		}
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	k := newKitchen(t)

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := k.search.Semantic(context.Background(), q, search.NewFilter())
		require.ErrorIs(t, err, search.ErrInvalidQuery)
		_, err = k.search.Hybrid(context.Background(), q, search.NewFilter())
		require.ErrorIs(t, err, search.ErrInvalidQuery)
	}
	assert.Zero(t, k.embedder.calls.Load())
}

func TestSearch_ProviderOutage(t *testing.T) {
	k := newKitchen(t)
	k.embedAll(t)
	k.embedder.fail.Store(true)

	_, err := k.search.Semantic(context.Background(), "thai curry", search.NewFilter())
	require.ErrorIs(t, err, search.ErrEmbeddingUnavailable)

	_, err = k.search.Hybrid(context.Background(), "thai curry", search.NewFilter())
	require.ErrorIs(t, err, search.ErrEmbeddingUnavailable)
}

func TestSearch_Closed(t *testing.T) {
	closed := &atomic.Bool{}
	closed.Store(true)
	k := newKitchen(t, WithClosedFlag(closed))

	_, err := k.search.Semantic(context.Background(), "thai", search.NewFilter())
	require.ErrorIs(t, err, ErrClientClosed)
}

func TestSearch_HybridDualListed(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedAll(t)

	results, err := k.search.Hybrid(ctx, "noodles", search.NewFilter(), search.WithMinSimilarity(0.4))
	require.NoError(t, err)
	require.Equal(t, []string{"r-padthai"}, hitIDs(results))

	hit := results.Hits()[0]
	assert.True(t, hit.Sources().Has(search.SourceSemantic|search.SourceLexical))
	assert.InDelta(t, 0.7*0.70710678+0.3*1.0, hit.Score(), 1e-6)
}

func TestSearch_HybridDualListedWinsTies(t *testing.T) {
	ctx := context.Background()
	fusion, err := search.NewFusionWithWeights(0.5, 0.5)
	require.NoError(t, err)
	k := newKitchen(t,
		WithFusion(fusion),
		WithLexicalStore(fixedLexical{hits: []search.LexicalHit{search.NewLexicalHit("r-padthai", 0.5)}}),
	)
	k.embedAll(t)

	// r-curry: 0.5*1.0 semantic only; r-padthai: 0.5*0.5 + 0.5*0.5 from both lists.
	results, err := k.search.Hybrid(ctx, "thai curry", search.NewFilter(), search.WithMinSimilarity(0.4))
	require.NoError(t, err)
	assert.Equal(t, []string{"r-padthai", "r-curry"}, hitIDs(results))
}

func TestSearch_HybridDropsLexicalOnlyWithoutVector(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedAll(t)
	require.NoError(t, k.recipes.SaveAll(ctx, []recipe.Recipe{
		recipe.New("r-pie", "Curry Pie", recipe.WithVisibility(recipe.VisibilityPublic)),
	}))

	results, err := k.search.Hybrid(ctx, "curry", search.NewFilter(), search.WithMinSimilarity(0.4))
	require.NoError(t, err)
	assert.Equal(t, []string{"r-curry"}, hitIDs(results))
}

func TestSearch_HybridDropsLexicalOnlyBelowFloor(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t, WithLexicalStore(fixedLexical{hits: []search.LexicalHit{
		search.NewLexicalHit("r-cake", 1.0),
		search.NewLexicalHit("r-padthai", 0.5),
	}}))
	k.embedAll(t)

	results, err := k.search.Hybrid(ctx, "thai curry", search.NewFilter(), search.WithMinSimilarity(0.4))
	require.NoError(t, err)
	assert.Equal(t, []string{"r-curry", "r-padthai"}, hitIDs(results))
}

func TestSearch_HybridDegradesWhenLexicalFails(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t, WithLexicalStore(failingLexical{}))
	k.embedAll(t)

	results, err := k.search.Hybrid(ctx, "thai curry", search.NewFilter(), search.WithMinSimilarity(0.4))
	require.NoError(t, err)
	assert.Equal(t, []string{"r-curry", "r-padthai"}, hitIDs(results))
	for _, h := range results.Hits() {
		assert.False(t, h.Sources().Has(search.SourceLexical))
	}
}

func TestSearch_HybridDeterministicOrder(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedAll(t)

	first, err := k.search.Hybrid(ctx, "thai", search.NewFilter(), search.WithMinSimilarity(0))
	require.NoError(t, err)
	for range 5 {
		again, err := k.search.Hybrid(ctx, "thai", search.NewFilter(), search.WithMinSimilarity(0))
		require.NoError(t, err)
		assert.Equal(t, hitIDs(first), hitIDs(again))
	}
}
