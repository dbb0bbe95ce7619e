package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/helixml/pantry/domain/search"
)

// DefaultOllamaModel is the Ollama embedding model used when none is configured.
const DefaultOllamaModel = "nomic-embed-text"

// OllamaConfig holds configuration for the Ollama embedder.
type OllamaConfig struct {
	ServerURL string
	Model     string
	BatchSize int
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Ollama embeds text with a model served by Ollama, through langchaingo.
type Ollama struct {
	embedder embeddings.Embedder
	model    string
}

// NewOllama creates an Ollama embedder.
func NewOllama(cfg OllamaConfig) (*Ollama, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}

	opts := []ollama.Option{
		ollama.WithModel(model),
		ollama.WithHTTPClient(&http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport}),
	}
	if cfg.ServerURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	embedOpts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		embedOpts = append(embedOpts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(llm, embedOpts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}

	return &Ollama{embedder: embedder, model: model}, nil
}

// Model returns the embedding model name.
func (o *Ollama) Model() string { return o.model }

// Embed generates embeddings for texts.
func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := o.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, NewProviderError("ollama embedding", 0, err.Error(), ctx.Err() == nil, err)
	}
	if len(vectors) != len(texts) {
		return nil, NewProviderError("ollama embedding", 0,
			fmt.Sprintf("got %d vectors for %d texts", len(vectors), len(texts)), true, errEmbeddingCountMismatch)
	}
	return vectors, nil
}

var _ search.Embedder = (*Ollama)(nil)
