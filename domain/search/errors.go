package search

import "errors"

var (
	// ErrInvalidQuery indicates empty or malformed query text.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// active model's dimension reached the write path.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingUnavailable indicates the embedding provider could not
	// produce a vector.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrModelMismatch indicates a record produced by one model was offered to
	// a store operation scoped to another.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrEmptySourceText indicates a recipe synthesizes to no text and cannot
	// be embedded.
	ErrEmptySourceText = errors.New("empty embedding source text")

	// ErrEmbeddingNotFound indicates no record exists for a recipe and model.
	ErrEmbeddingNotFound = errors.New("embedding not found")
)
