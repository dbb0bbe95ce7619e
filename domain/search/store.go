package search

import "context"

// RankRequest describes a nearest-neighbour query.
type RankRequest struct {
	Vector        []float32
	Filter        Filter
	MinSimilarity float64
	Limit         int
}

// Ranking is the output of EmbeddingStore.Rank.
type Ranking struct {
	Hits       []Hit
	Considered int
}

// EmbeddingStore persists embedding records and ranks them by cosine
// similarity. Every method is scoped to a single model.
type EmbeddingStore interface {
	// Upsert writes the record keyed on (recipe ID, model name), replacing
	// any existing vector. The record is validated against the model first.
	Upsert(ctx context.Context, model Model, embedding Embedding) (Embedding, error)

	// Get returns the record for a recipe, or ErrEmbeddingNotFound.
	Get(ctx context.Context, model Model, recipeID string) (Embedding, error)

	// Rank returns the records nearest to the request vector, ordered by
	// similarity descending then recipe ID ascending.
	Rank(ctx context.Context, model Model, request RankRequest) (Ranking, error)

	// Similarities returns the similarity of vector to each listed recipe
	// that has a record. Recipes without one are absent from the map.
	Similarities(ctx context.Context, model Model, vector []float32, recipeIDs []string) (map[string]float64, error)

	// Missing returns up to limit recipe IDs, sorted ascending and greater
	// than afterID, that have no record for the model.
	Missing(ctx context.Context, model Model, afterID string, limit int) ([]string, error)

	// Count returns the number of records for the model.
	Count(ctx context.Context, model Model) (int64, error)

	// DeleteOtherModels removes every record not produced by model.
	DeleteOtherModels(ctx context.Context, model Model) (int64, error)
}

// LexicalStore performs text-match search over recipe name, description and
// tags. Scores are normalised to [0, 1].
type LexicalStore interface {
	Find(ctx context.Context, query string, filter Filter, limit int) ([]LexicalHit, error)
}
