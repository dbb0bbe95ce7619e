package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/helixml/pantry/domain/search"
)

// DefaultOpenAIModel is the embedding model used when none is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// errEmbeddingCountMismatch indicates the API returned fewer embedding vectors
// than requested. Transient upstream issues (e.g. rate-limiting behind a 200
// status) can produce partial responses, so it is retryable.
var errEmbeddingCountMismatch = errors.New("embedding response count mismatch")

// errUpstreamProviderFailure indicates the API returned HTTP 200 but the
// body held no data, no model and no usage. Routing providers such as
// OpenRouter do this when every upstream has failed.
var errUpstreamProviderFailure = errors.New("upstream provider failure")

// OpenAIConfig holds configuration for the OpenAI embedder. BaseURL may
// point at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
	Transport  http.RoundTripper
}

// OpenAI embeds text through an OpenAI-compatible embeddings endpoint. It
// makes exactly one request per call; wrap it in Retrying for retries.
type OpenAI struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAI creates an OpenAI embedder from configuration.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 || cfg.Transport != nil {
		config.HTTPClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAI{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: cfg.Dimensions,
	}
}

// Model returns the embedding model name.
func (p *OpenAI) Model() string { return p.model }

// Embed generates embeddings for texts in a single API call.
func (p *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	}
	if p.dimensions > 0 {
		req.Dimensions = p.dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Data) == 0 && string(resp.Model) == "" && resp.Usage.TotalTokens == 0 {
		return nil, NewProviderError("embedding", http.StatusOK,
			"provider returned no embedding data, no model and zero usage", false, errUpstreamProviderFailure)
	}
	if len(resp.Data) != len(texts) {
		return nil, NewProviderError("embedding", http.StatusOK,
			fmt.Sprintf("got %d vectors for %d texts", len(resp.Data), len(texts)), true, errEmbeddingCountMismatch)
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, NewProviderError("embedding", http.StatusOK,
				fmt.Sprintf("response index %d out of range", data.Index), true, errEmbeddingCountMismatch)
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}

// wrapError converts a go-openai error into a ProviderError.
func (p *OpenAI) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError("embedding", apiErr.HTTPStatusCode, apiErr.Message, retryableStatus(apiErr.HTTPStatusCode), err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError("embedding", reqErr.HTTPStatusCode, reqErr.Error(),
			reqErr.HTTPStatusCode == 0 || retryableStatus(reqErr.HTTPStatusCode), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewProviderError("embedding", 0, err.Error(), true, err)
	}

	return NewProviderError("embedding", 0, err.Error(), !errors.Is(err, context.Canceled), err)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

var _ search.Embedder = (*OpenAI)(nil)
