package provider

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.Contains(r.URL.Path, "fail") {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(append([]byte("echo:"), body...))
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := &http.Client{Transport: NewEmbeddingCache(dir, nil, nil)}

	post := func(path, body string) (int, string) {
		resp, err := client.Post(srv.URL+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(data)
	}

	t.Run("caches successful embedding responses", func(t *testing.T) {
		hits.Store(0)
		_, first := post("/v1/embeddings", `{"input":["a"]}`)
		_, second := post("/v1/embeddings", `{"input":["a"]}`)
		assert.Equal(t, `echo:{"input":["a"]}`, first)
		assert.Equal(t, first, second)
		assert.Equal(t, int64(1), hits.Load())
	})

	t.Run("different bodies miss", func(t *testing.T) {
		hits.Store(0)
		post("/api/embed", `{"input":["b"]}`)
		post("/api/embed", `{"input":["c"]}`)
		assert.Equal(t, int64(2), hits.Load())
	})

	t.Run("errors are not cached", func(t *testing.T) {
		hits.Store(0)
		status, _ := post("/fail/embeddings", `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		post("/fail/embeddings", `{}`)
		assert.Equal(t, int64(2), hits.Load())
	})

	t.Run("other endpoints pass through", func(t *testing.T) {
		hits.Store(0)
		post("/v1/chat/completions", `{}`)
		post("/v1/chat/completions", `{}`)
		assert.Equal(t, int64(2), hits.Load())
	})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
