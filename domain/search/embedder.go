package search

import "context"

// Embedder turns texts into vectors, one per text and in the same order.
// Errors that a retry may cure are wrapped in ErrEmbeddingUnavailable by the
// retrying decorator, not by implementations.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
