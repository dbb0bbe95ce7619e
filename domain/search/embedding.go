package search

import "time"

// Embedding is the stored vector for one recipe under one model.
type Embedding struct {
	recipeID   string
	modelName  string
	sourceText string
	vector     []float32
	createdAt  time.Time
	updatedAt  time.Time
}

// NewEmbedding creates an Embedding that has not been persisted yet.
func NewEmbedding(recipeID, modelName, sourceText string, vector []float32) Embedding {
	return Embedding{
		recipeID:   recipeID,
		modelName:  modelName,
		sourceText: sourceText,
		vector:     append([]float32(nil), vector...),
	}
}

// ReconstructEmbedding reconstructs an Embedding from persistence.
func ReconstructEmbedding(recipeID, modelName, sourceText string, vector []float32, createdAt, updatedAt time.Time) Embedding {
	e := NewEmbedding(recipeID, modelName, sourceText, vector)
	e.createdAt = createdAt
	e.updatedAt = updatedAt
	return e
}

// RecipeID returns the owning recipe's ID.
func (e Embedding) RecipeID() string { return e.recipeID }

// ModelName returns the model that produced the vector.
func (e Embedding) ModelName() string { return e.modelName }

// SourceText returns the exact text that was embedded.
func (e Embedding) SourceText() string { return e.sourceText }

// Vector returns a copy of the vector.
func (e Embedding) Vector() []float32 {
	return append([]float32(nil), e.vector...)
}

// Dimension returns the vector length.
func (e Embedding) Dimension() int { return len(e.vector) }

// CreatedAt returns when the record was first stored.
func (e Embedding) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns when the vector was last written.
func (e Embedding) UpdatedAt() time.Time { return e.updatedAt }

// IsStale reports whether the record was produced from different text than
// the recipe currently synthesizes to.
func (e Embedding) IsStale(currentText string) bool {
	return e.sourceText != currentText
}
