// Package service provides application layer services that orchestrate domain operations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/repository"
	"github.com/helixml/pantry/domain/search"
)

// maxCandidateWindow caps how many candidates each hybrid list contributes.
const maxCandidateWindow = 200

// SearchOption configures a Search service.
type SearchOption func(*Search)

// WithFusion sets the hybrid fusion weights.
func WithFusion(f search.Fusion) SearchOption {
	return func(s *Search) {
		s.fusion = f
	}
}

// WithDefaultMinSimilarity sets the floor applied when a request does not
// specify one.
func WithDefaultMinSimilarity(f float64) SearchOption {
	return func(s *Search) {
		s.minSimilarity = f
	}
}

// WithLexicalStore sets the lexical collaborator used by hybrid search.
func WithLexicalStore(l search.LexicalStore) SearchOption {
	return func(s *Search) {
		s.lexical = l
	}
}

// WithClosedFlag shares the client's closed flag with the service.
func WithClosedFlag(closed *atomic.Bool) SearchOption {
	return func(s *Search) {
		s.closed = closed
	}
}

// Search answers free-text recipe queries by vector similarity, optionally
// fused with lexical matching.
type Search struct {
	embedder      search.Embedder
	store         search.EmbeddingStore
	lexical       search.LexicalStore
	recipes       recipe.Store
	model         search.Model
	fusion        search.Fusion
	minSimilarity float64
	closed        *atomic.Bool
	logger        *slog.Logger
}

// NewSearch creates a new Search service.
func NewSearch(
	embedder search.Embedder,
	store search.EmbeddingStore,
	recipes recipe.Store,
	model search.Model,
	logger *slog.Logger,
	opts ...SearchOption,
) *Search {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Search{
		embedder:      embedder,
		store:         store,
		recipes:       recipes,
		model:         model,
		fusion:        search.NewFusion(),
		minSimilarity: search.DefaultMinSimilarity,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HybridAvailable reports whether a lexical collaborator is configured.
func (s *Search) HybridAvailable() bool {
	return s.lexical != nil
}

// Semantic ranks recipes by cosine similarity between the query and their
// stored vectors.
func (s *Search) Semantic(ctx context.Context, query string, filter search.Filter, opts ...search.Option) (search.Results, error) {
	query, options, err := s.prepare(query, opts)
	if err != nil {
		return search.Results{}, err
	}
	filter = filter.With(search.WithScope(options.Scope()))

	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return search.Results{}, err
	}

	ranking, err := s.store.Rank(ctx, s.model, search.RankRequest{
		Vector:        vector,
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

	s.logger.DebugContext(ctx, "semantic search",
		slog.String("model", s.model.Name()),
		slog.Int("considered", ranking.Considered),
		slog.Int("hits", len(hits)),
	)
	return search.NewResults(hits, ranking.Considered), nil
}

// Hybrid runs semantic ranking and lexical matching concurrently and fuses
// the two lists. A lexical failure degrades to semantic-only results; a
// semantic failure fails the call.
func (s *Search) Hybrid(ctx context.Context, query string, filter search.Filter, opts ...search.Option) (search.Results, error) {
	query, options, err := s.prepare(query, opts)
	if err != nil {
		return search.Results{}, err
	}
	filter = filter.With(search.WithScope(options.Scope()))
	window := min(2*options.Limit(), maxCandidateWindow)

	var (
		vector   []float32
		semantic search.Ranking
		lexical  []search.LexicalHit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.embedQuery(gctx, query)
		if err != nil {
			return err
		}
		vector = v
		semantic, err = s.store.Rank(gctx, s.model, search.RankRequest{
			Vector:        v,
			Filter:        filter,
			MinSimilarity: options.MinSimilarity(),
			Limit:         window,
		})
		return err
	})
	if s.lexical != nil {
		g.Go(func() error {
			hits, err := s.lexical.Find(gctx, query, filter, window)
			if err != nil {
				s.logger.WarnContext(gctx, "lexical search failed, using semantic results only", slog.Any("error", err))
				return nil
			}
			lexical = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return search.Results{}, err
	}

	resolved := s.resolveLexicalOnly(ctx, vector, semantic.Hits, lexical)
	fused := s.fusion.Fuse(semantic.Hits, lexical, resolved)
	fused = search.TopK(search.AboveFloor(fused, options.MinSimilarity()), options.Limit())

	hits, err := annotate(ctx, s.recipes, fused)
	if err != nil {
		return search.Results{}, err
	}

	s.logger.DebugContext(ctx, "hybrid search",
		slog.String("model", s.model.Name()),
		slog.Int("semantic", len(semantic.Hits)),
		slog.Int("lexical", len(lexical)),
		slog.Int("hits", len(hits)),
	)
	return search.NewResults(hits, semantic.Considered), nil
}

// resolveLexicalOnly scores lexical candidates the semantic list missed.
// Failures leave them unresolved, which drops them from the fused list.
func (s *Search) resolveLexicalOnly(ctx context.Context, vector []float32, semantic []search.Hit, lexical []search.LexicalHit) map[string]float64 {
	seen := make(map[string]struct{}, len(semantic))
	for _, h := range semantic {
		seen[h.RecipeID()] = struct{}{}
	}
	var ids []string
	for _, l := range lexical {
		if _, ok := seen[l.RecipeID()]; !ok {
			ids = append(ids, l.RecipeID())
		}
	}
	if len(ids) == 0 {
		return map[string]float64{}
	}

	resolved, err := s.store.Similarities(ctx, s.model, vector, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "scoring lexical-only candidates failed", slog.Any("error", err))
		return map[string]float64{}
	}
	return resolved
}

func (s *Search) prepare(query string, opts []search.Option) (string, search.Options, error) {
	if s.closed != nil && s.closed.Load() {
		return "", search.Options{}, ErrClientClosed
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", search.Options{}, fmt.Errorf("%w: query must not be empty", search.ErrInvalidQuery)
	}
	opts = append([]search.Option{search.WithMinSimilarity(s.minSimilarity)}, opts...)
	return query, search.NewOptions(opts...), nil
}

func (s *Search) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, unavailable(fmt.Errorf("embed query: %w", err))
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: provider returned %d vectors for 1 query", search.ErrEmbeddingUnavailable, len(vectors))
	}
	return vectors[0], nil
}

// annotate attaches recipe summaries to hits, preserving order. Hits whose
// recipe has disappeared since ranking are dropped.
func annotate(ctx context.Context, recipes recipe.Store, hits []search.Hit) ([]search.Hit, error) {
	if len(hits) == 0 {
		return []search.Hit{}, nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.RecipeID()
	}

	found, err := recipes.Find(ctx, repository.WithIDIn(ids))
	if err != nil {
		return nil, fmt.Errorf("load result recipes: %w", err)
	}
	byID := make(map[string]recipe.Recipe, len(found))
	for _, r := range found {
		byID[r.ID()] = r
	}

	annotated := make([]search.Hit, 0, len(hits))
	for _, h := range hits {
		r, ok := byID[h.RecipeID()]
		if !ok {
			continue
		}
		annotated = append(annotated, h.WithSummary(search.SummaryOf(r)))
	}
	return annotated, nil
}
