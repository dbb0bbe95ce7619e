package persistence

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/helixml/pantry/domain/repository"
	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/internal/database"
)

// ErrPgvectorInitializationFailed indicates pgvector initialization failed.
var ErrPgvectorInitializationFailed = errors.New("failed to initialize pgvector store")

const pgvCheckDimensions = `
SELECT DISTINCT vector_dims(vector) AS dimension
FROM recipe_embeddings
WHERE model_name = ?`

// PgVectorStore implements search.EmbeddingStore on PostgreSQL with the
// pgvector extension. Each model gets a partial HNSW index over its rows,
// cast to the model's dimension, so nearest-neighbour queries stay
// sub-linear and never mix generations.
type PgVectorStore struct {
	repo   database.Repository[search.Embedding, PgEmbeddingModel]
	db     database.Database
	logger *slog.Logger
}

// NewPgVectorStore creates a PgVectorStore for model, creating the model's
// HNSW index and verifying that stored vectors match its dimension.
func NewPgVectorStore(ctx context.Context, db database.Database, model search.Model, logger *slog.Logger) (*PgVectorStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PgVectorStore{
		repo:   database.NewRepository[search.Embedding, PgEmbeddingModel](db, pgEmbeddingMapper{}, "embedding").WithUpsert(embeddingKey, embeddingUpdates),
		db:     db,
		logger: logger,
	}

	rawDB := db.Session(ctx)

	if err := rawDB.Exec(hnswIndexSQL(model)).Error; err != nil {
		return nil, errors.Join(ErrPgvectorInitializationFailed, fmt.Errorf("create hnsw index: %w", err))
	}

	var dims []int
	if err := rawDB.Raw(pgvCheckDimensions, model.Name()).Scan(&dims).Error; err != nil {
		return nil, errors.Join(ErrPgvectorInitializationFailed, fmt.Errorf("check dimension: %w", err))
	}
	for _, d := range dims {
		if d != model.Dimension() {
			return nil, fmt.Errorf("%w: database has %d for model %s, provider has %d",
				search.ErrDimensionMismatch, d, model.Name(), model.Dimension())
		}
	}

	return s, nil
}

// hnswIndexSQL builds the partial index statement for a model. Model names
// are embedded as SQL literals because index predicates cannot be bound.
func hnswIndexSQL(model search.Model) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(model.String()))
	name := fmt.Sprintf("idx_recipe_embeddings_hnsw_%08x", h.Sum32())
	literal := strings.ReplaceAll(model.Name(), "'", "''")
	return fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON recipe_embeddings USING hnsw ((vector::vector(%d)) vector_cosine_ops) WHERE model_name = '%s'`,
		name, model.Dimension(), literal,
	)
}

// pgDistance is the cosine distance expression matching the model's index.
func pgDistance(model search.Model) string {
	return fmt.Sprintf("(e.vector::vector(%d)) <=> ?::vector", model.Dimension())
}

// Upsert validates and writes an embedding record.
func (s *PgVectorStore) Upsert(ctx context.Context, model search.Model, embedding search.Embedding) (search.Embedding, error) {
	if err := model.Check(embedding); err != nil {
		return search.Embedding{}, err
	}

	if err := s.repo.Save(ctx, embedding); err != nil {
		return search.Embedding{}, translateWriteError(err, embedding.RecipeID())
	}
	return s.Get(ctx, model, embedding.RecipeID())
}

// Get returns the record for a recipe under the model.
func (s *PgVectorStore) Get(ctx context.Context, model search.Model, recipeID string) (search.Embedding, error) {
	e, err := s.repo.FindOne(ctx,
		repository.WithCondition("recipe_id", recipeID),
		repository.WithCondition("model_name", model.Name()),
	)
	if err != nil {
		return search.Embedding{}, notFound(err, model, recipeID)
	}
	return e, nil
}

func (s *PgVectorStore) scoped(ctx context.Context, model search.Model, filter search.Filter) *gorm.DB {
	tx := s.db.Session(ctx).Table("recipe_embeddings AS e").
		Joins("JOIN recipes r ON r.id = e.recipe_id").
		Where("e.model_name = ?", model.Name())
	return applyRecipeFilter(tx, s.db.Dialect(), filter)
}

type pgRankRow struct {
	RecipeID   string  `gorm:"column:recipe_id"`
	Similarity float64 `gorm:"column:similarity"`
}

// Rank runs an index-backed nearest-neighbour query.
//
// Considered comes from a COUNT over the scoped join, which is linear in the
// number of in-scope vectors while the top-k walks the HNSW index. The two
// queries run side by side on separate connections so the count adds no
// latency beyond its own. Inside a transaction they share one connection and
// run in turn.
func (s *PgVectorStore) Rank(ctx context.Context, model search.Model, request search.RankRequest) (search.Ranking, error) {
	if err := model.CheckVector(request.Vector); err != nil {
		return search.Ranking{}, err
	}
	vec := pgvector.NewVector(request.Vector)
	distance := pgDistance(model)

	limit := request.Limit
	if limit <= 0 {
		limit = search.MaxLimit
	}

	var considered int64
	count := func(ctx context.Context) error {
		if err := s.scoped(ctx, model, request.Filter).Count(&considered).Error; err != nil {
			return fmt.Errorf("count %s candidates: %w", model.Name(), err)
		}
		return nil
	}

	var rows []pgRankRow
	nearest := func(ctx context.Context) error {
		err := s.scoped(ctx, model, request.Filter).
			Select("e.recipe_id, 1 - ("+distance+") AS similarity", vec).
			Where("1 - ("+distance+") >= ?", vec, request.MinSimilarity).
			Clauses(clause.OrderBy{Expression: clause.Expr{
				SQL:                distance + " ASC, e.recipe_id ASC",
				Vars:               []any{vec},
				WithoutParentheses: true,
			}}).
			Limit(limit).
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("rank %s vectors: %w", model.Name(), err)
		}
		return nil
	}

	if database.HasTransaction(ctx) {
		if err := count(ctx); err != nil {
			return search.Ranking{}, err
		}
		if err := nearest(ctx); err != nil {
			return search.Ranking{}, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return count(gctx) })
		g.Go(func() error { return nearest(gctx) })
		if err := g.Wait(); err != nil {
			return search.Ranking{}, err
		}
	}

	hits := make([]search.Hit, len(rows))
	for i, row := range rows {
		hits[i] = search.NewHit(row.RecipeID, row.Similarity)
	}
	search.SortHits(hits)

	return search.Ranking{Hits: hits, Considered: int(considered)}, nil
}

// Similarities scores the listed recipes against vector.
func (s *PgVectorStore) Similarities(ctx context.Context, model search.Model, vector []float32, recipeIDs []string) (map[string]float64, error) {
	result := make(map[string]float64, len(recipeIDs))
	if len(recipeIDs) == 0 {
		return result, nil
	}
	if err := model.CheckVector(vector); err != nil {
		return nil, err
	}

	distance := pgDistance(model)
	var rows []pgRankRow
	err := s.db.Session(ctx).Table("recipe_embeddings AS e").
		Select("e.recipe_id, 1 - ("+distance+") AS similarity", pgvector.NewVector(vector)).
		Where("e.model_name = ? AND e.recipe_id IN ?", model.Name(), recipeIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("score %s vectors: %w", model.Name(), err)
	}
	for _, row := range rows {
		result[row.RecipeID] = row.Similarity
	}
	return result, nil
}

// Missing returns recipe IDs without a record for the model.
func (s *PgVectorStore) Missing(ctx context.Context, model search.Model, afterID string, limit int) ([]string, error) {
	return missingRecipeIDs(s.db.Session(ctx), model, afterID, limit)
}

// Count returns the number of records for the model.
func (s *PgVectorStore) Count(ctx context.Context, model search.Model) (int64, error) {
	return countForModel(s.db.Session(ctx), model)
}

// DeleteOtherModels removes records produced by any other model.
func (s *PgVectorStore) DeleteOtherModels(ctx context.Context, model search.Model) (int64, error) {
	n, err := deleteOtherModels(s.db.Session(ctx), model)
	if err == nil && n > 0 {
		s.logger.InfoContext(ctx, "purged embeddings of superseded models",
			slog.String("model", model.Name()),
			slog.Int64("deleted", n),
		)
	}
	return n, err
}
