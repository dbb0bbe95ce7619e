package provider

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// EmbeddingCache is an http.RoundTripper that stores successful embedding
// responses on disk, keyed by the SHA-256 of method, URL and request body.
// Only POSTs to embedding endpoints are cached. Cache failures fall through
// to the inner transport. It keeps development backfills and fixture
// re-seeding from paying for the same provider call twice.
type EmbeddingCache struct {
	inner  http.RoundTripper
	dir    string
	logger *slog.Logger
}

// NewEmbeddingCache creates an EmbeddingCache storing files under dir. A nil
// inner transport means http.DefaultTransport.
func NewEmbeddingCache(dir string, inner http.RoundTripper, logger *slog.Logger) *EmbeddingCache {
	if inner == nil {
		inner = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("embedding cache directory unavailable", slog.String("dir", dir), slog.Any("error", err))
	}
	return &EmbeddingCache{inner: inner, dir: dir, logger: logger}
}

type cachedResponse struct {
	StatusCode int                 `json:"status_code"`
	Header     map[string][]string `json:"header"`
	Body       string              `json:"body"`
}

// RoundTrip implements http.RoundTripper.
func (c *EmbeddingCache) RoundTrip(req *http.Request) (*http.Response, error) {
	if !cacheable(req) {
		return c.inner.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(body))

	path := filepath.Join(c.dir, cacheKey(req.Method, req.URL.String(), body)+".json")
	if resp, ok := c.read(path, req); ok {
		return resp, nil
	}

	resp, err := c.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()

	c.write(path, resp.StatusCode, resp.Header, respBody)
	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	return resp, nil
}

// cacheable matches the OpenAI (/embeddings) and Ollama (/api/embed,
// /api/embeddings) endpoints.
func cacheable(req *http.Request) bool {
	if req.Method != http.MethodPost || req.Body == nil {
		return false
	}
	path := req.URL.Path
	return strings.HasSuffix(path, "/embeddings") || strings.HasSuffix(path, "/api/embed")
}

func cacheKey(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte("\n"))
	h.Write([]byte(url))
	h.Write([]byte("\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *EmbeddingCache) read(path string, req *http.Request) (*http.Response, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Debug("ignoring corrupt embedding cache entry", slog.String("path", path))
		return nil, false
	}
	body, err := base64.StdEncoding.DecodeString(cached.Body)
	if err != nil {
		return nil, false
	}

	return &http.Response{
		StatusCode: cached.StatusCode,
		Header:     cached.Header,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}, true
}

func (c *EmbeddingCache) write(path string, statusCode int, header http.Header, body []byte) {
	data, err := json.Marshal(cachedResponse{
		StatusCode: statusCode,
		Header:     header,
		Body:       base64.StdEncoding.EncodeToString(body),
	})
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.logger.Debug("embedding cache write failed", slog.String("path", path), slog.Any("error", err))
	}
}
