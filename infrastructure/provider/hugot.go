package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/helixml/pantry/domain/search"
)

// The local model is all-MiniLM-L6-v2: normalised 384-dimension sentence
// embeddings, fetched by `pantry download-model`.
const (
	DefaultLocalModel     = "all-minilm-l6-v2"
	DefaultLocalDimension = 384
	DefaultLocalRepo      = "sentence-transformers/all-MiniLM-L6-v2"
)

const hugotBatchMax = 16

var errNoLocalModel = errors.New("no local embedding model")

// localRuntime is the single hugot session of the process. ONNX runtimes allow
// one live session, so every Hugot shares it and inference is serialised.
var localRuntime struct {
	mu       sync.Mutex
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
}

// Hugot embeds text in-process with a sentence-transformer model on disk.
type Hugot struct {
	modelDir string
}

// NewHugot creates a Hugot reading the model from modelDir. The directory
// may hold the model files directly or one subdirectory per model.
func NewHugot(modelDir string) *Hugot {
	return &Hugot{modelDir: modelDir}
}

// Available reports whether a model can be found.
func (h *Hugot) Available() bool {
	_, err := h.modelPath()
	return err == nil
}

// modelPath returns modelDir itself when it holds tokenizer.json, else its
// first subdirectory that does, in name order.
func (h *Hugot) modelPath() (string, error) {
	if hasTokenizer(h.modelDir) {
		return h.modelDir, nil
	}
	entries, err := os.ReadDir(h.modelDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNoLocalModel, err)
	}
	for _, e := range entries {
		if dir := filepath.Join(h.modelDir, e.Name()); e.IsDir() && hasTokenizer(dir) {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w in %s", errNoLocalModel, h.modelDir)
}

func hasTokenizer(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "tokenizer.json"))
	return err == nil && !info.IsDir()
}

// load starts the shared pipeline once. localRuntime.mu must be held.
func (h *Hugot) load() error {
	if localRuntime.pipeline != nil {
		return nil
	}
	path, err := h.modelPath()
	if err != nil {
		return err
	}
	session, err := newHugotSession()
	if err != nil {
		return fmt.Errorf("start hugot session: %w", err)
	}
	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: path,
		Name:      "recipe-embeddings",
		Options:   []hugot.FeatureExtractionOption{pipelines.WithNormalization()},
	})
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("load model %s: %w", path, err)
	}
	localRuntime.session, localRuntime.pipeline = session, pipeline
	return nil
}

// Embed runs the model over texts, hugotBatchMax at a time.
func (h *Hugot) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	localRuntime.mu.Lock()
	defer localRuntime.mu.Unlock()

	if err := h.load(); err != nil {
		return nil, NewProviderError("local embedding", 0, err.Error(), false, err)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += hugotBatchMax {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := localRuntime.pipeline.RunPipeline(texts[start:min(start+hugotBatchMax, len(texts))])
		if err != nil {
			return nil, NewProviderError("local embedding", 0, err.Error(), false, err)
		}
		out = append(out, res.Embeddings...)
	}
	return out, nil
}

// Close leaves the shared session running for other clients in the process.
func (h *Hugot) Close() error { return nil }

var _ search.Embedder = (*Hugot)(nil)
