package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/search"
)

// Similar finds recipes close to a given recipe. The source recipe's vector
// is created on demand, and an unavailable provider yields an empty result
// rather than an error.
type Similar struct {
	recipes       recipe.Store
	backfill      *Backfill
	store         search.EmbeddingStore
	minSimilarity float64
	closed        *atomic.Bool
	logger        *slog.Logger
}

// SimilarOption configures a Similar service.
type SimilarOption func(*Similar)

// WithSimilarMinSimilarity sets the default similarity floor.
func WithSimilarMinSimilarity(f float64) SimilarOption {
	return func(s *Similar) {
		s.minSimilarity = f
	}
}

// WithSimilarClosedFlag shares the client's closed flag with the service.
func WithSimilarClosedFlag(closed *atomic.Bool) SimilarOption {
	return func(s *Similar) {
		s.closed = closed
	}
}

// NewSimilar creates a new Similar service.
func NewSimilar(
	recipes recipe.Store,
	backfill *Backfill,
	store search.EmbeddingStore,
	logger *slog.Logger,
	opts ...SimilarOption,
) *Similar {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Similar{
		recipes:       recipes,
		backfill:      backfill,
		store:         store,
		minSimilarity: search.DefaultMinSimilarity,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Find returns recipes similar to recipeID, never including the recipe
// itself. The limit defaults to search.DefaultSimilarLimit.
func (s *Similar) Find(ctx context.Context, recipeID string, opts ...search.Option) (search.Results, error) {
	if s.closed != nil && s.closed.Load() {
		return search.Results{}, ErrClientClosed
	}
	opts = append([]search.Option{
		search.WithLimit(search.DefaultSimilarLimit),
		search.WithMinSimilarity(s.minSimilarity),
	}, opts...)
	options := search.NewOptions(opts...)

	source, err := s.recipes.Get(ctx, recipeID)
	if err != nil {
		return search.Results{}, err
	}
	if !source.VisibleTo(options.ViewerID(), true) {
		return search.Results{}, fmt.Errorf("%w: %s", recipe.ErrNotFound, recipeID)
	}

	embedding, err := s.backfill.Ensure(ctx, source)
	switch {
	case errors.Is(err, search.ErrEmbeddingUnavailable):
		s.logger.WarnContext(ctx, "similar recipes unavailable, provider failed",
			slog.String("recipe_id", recipeID),
			slog.Any("error", err),
		)
		return search.EmptyResults(), nil
	case errors.Is(err, search.ErrEmptySourceText):
		s.logger.DebugContext(ctx, "similar recipes unavailable, nothing to embed", slog.String("recipe_id", recipeID))
		return search.EmptyResults(), nil
	case err != nil:
		return search.Results{}, err
	}

	filter := search.NewFilter(
		search.WithScope(options.Scope()),
		search.WithExcludeIDs(recipeID),
	)
	ranking, err := s.store.Rank(ctx, s.backfill.Model(), search.RankRequest{
		Vector:        embedding.Vector(),
		Filter:        filter,
		MinSimilarity: options.MinSimilarity(),
		Limit:         options.Limit(),
	})
	if err != nil {
		return search.Results{}, err
	}

	hits, err := annotate(ctx, s.recipes, ranking.Hits)
	if err != nil {
		return search.Results{}, err
	}
	return search.NewResults(hits, ranking.Considered), nil
}
