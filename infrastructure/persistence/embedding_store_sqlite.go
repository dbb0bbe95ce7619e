package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helixml/pantry/domain/repository"
	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/internal/database"
)

// SQLiteVectorStore implements search.EmbeddingStore for SQLite. Vectors are
// stored as JSON and ranked in memory by brute-force cosine similarity, which
// suits corpora below roughly ten thousand recipes.
type SQLiteVectorStore struct {
	repo   database.Repository[search.Embedding, SQLiteEmbeddingModel]
	db     database.Database
	logger *slog.Logger
}

// NewSQLiteVectorStore creates a SQLiteVectorStore. The schema must already
// exist (see AutoMigrate).
func NewSQLiteVectorStore(db database.Database, logger *slog.Logger) *SQLiteVectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteVectorStore{
		repo:   database.NewRepository[search.Embedding, SQLiteEmbeddingModel](db, sqliteEmbeddingMapper{}, "embedding").WithUpsert(embeddingKey, embeddingUpdates),
		db:     db,
		logger: logger,
	}
}

// Upsert validates and writes an embedding record.
func (s *SQLiteVectorStore) Upsert(ctx context.Context, model search.Model, embedding search.Embedding) (search.Embedding, error) {
	if err := model.Check(embedding); err != nil {
		return search.Embedding{}, err
	}

	if err := s.repo.Save(ctx, embedding); err != nil {
		return search.Embedding{}, translateWriteError(err, embedding.RecipeID())
	}
	return s.Get(ctx, model, embedding.RecipeID())
}

// Get returns the record for a recipe under the model.
func (s *SQLiteVectorStore) Get(ctx context.Context, model search.Model, recipeID string) (search.Embedding, error) {
	e, err := s.repo.FindOne(ctx,
		repository.WithCondition("recipe_id", recipeID),
		repository.WithCondition("model_name", model.Name()),
	)
	if err != nil {
		return search.Embedding{}, notFound(err, model, recipeID)
	}
	return e, nil
}

type sqliteVectorRow struct {
	RecipeID string       `gorm:"column:recipe_id"`
	Vector   Float32Slice `gorm:"column:vector"`
}

// Rank loads every in-scope vector for the model and ranks it by cosine
// similarity.
func (s *SQLiteVectorStore) Rank(ctx context.Context, model search.Model, request search.RankRequest) (search.Ranking, error) {
	if err := model.CheckVector(request.Vector); err != nil {
		return search.Ranking{}, err
	}

	tx := s.db.Session(ctx).Table("recipe_embeddings AS e").
		Joins("JOIN recipes r ON r.id = e.recipe_id").
		Where("e.model_name = ?", model.Name())
	tx = applyRecipeFilter(tx, s.db.Dialect(), request.Filter)

	var rows []sqliteVectorRow
	if err := tx.Select("e.recipe_id, e.vector").Scan(&rows).Error; err != nil {
		return search.Ranking{}, fmt.Errorf("load %s vectors: %w", model.Name(), err)
	}

	hits := make([]search.Hit, 0, len(rows))
	for _, row := range rows {
		similarity := search.CosineSimilarity(request.Vector, row.Vector)
		if similarity < request.MinSimilarity {
			continue
		}
		hits = append(hits, search.NewHit(row.RecipeID, similarity))
	}
	search.SortHits(hits)

	s.logger.DebugContext(ctx, "ranked sqlite vectors",
		slog.String("model", model.Name()),
		slog.Int("considered", len(rows)),
		slog.Int("above_floor", len(hits)),
	)

	return search.Ranking{Hits: search.TopK(hits, request.Limit), Considered: len(rows)}, nil
}

// Similarities scores the listed recipes against vector.
func (s *SQLiteVectorStore) Similarities(ctx context.Context, model search.Model, vector []float32, recipeIDs []string) (map[string]float64, error) {
	result := make(map[string]float64, len(recipeIDs))
	if len(recipeIDs) == 0 {
		return result, nil
	}
	if err := model.CheckVector(vector); err != nil {
		return nil, err
	}

	var rows []sqliteVectorRow
	err := s.db.Session(ctx).Table(embeddingsTable).
		Select("recipe_id, vector").
		Where("model_name = ? AND recipe_id IN ?", model.Name(), recipeIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load %s vectors: %w", model.Name(), err)
	}
	for _, row := range rows {
		result[row.RecipeID] = search.CosineSimilarity(vector, row.Vector)
	}
	return result, nil
}

// Missing returns recipe IDs without a record for the model.
func (s *SQLiteVectorStore) Missing(ctx context.Context, model search.Model, afterID string, limit int) ([]string, error) {
	return missingRecipeIDs(s.db.Session(ctx), model, afterID, limit)
}

// Count returns the number of records for the model.
func (s *SQLiteVectorStore) Count(ctx context.Context, model search.Model) (int64, error) {
	return countForModel(s.db.Session(ctx), model)
}

// DeleteOtherModels removes records produced by any other model.
func (s *SQLiteVectorStore) DeleteOtherModels(ctx context.Context, model search.Model) (int64, error) {
	return deleteOtherModels(s.db.Session(ctx), model)
}
