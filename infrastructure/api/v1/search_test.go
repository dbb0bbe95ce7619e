package v1_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/pantry/infrastructure/api/middleware"
	v1 "github.com/helixml/pantry/infrastructure/api/v1"
	"github.com/helixml/pantry/infrastructure/api/v1/dto"
	"github.com/helixml/pantry/internal/testembed"
)

func postSearch(t *testing.T, router http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResults(t *testing.T, rec *httptest.ResponseRecorder) dto.ResultsResponse {
	t.Helper()
	var resp dto.ResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func ids(resp dto.ResultsResponse) []string {
	out := make([]string, 0, len(resp.Data))
	for _, h := range resp.Data {
		out = append(out, h.RecipeID)
	}
	return out
}

func TestSearchRouter_Semantic(t *testing.T) {
	client := newClient(t, testembed.New())
	router := v1.NewSearchRouter(client).Routes()

	rec := postSearch(t, router, "/semantic", `{"query":"thai curry"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeResults(t, rec)
	require.NotEmpty(t, resp.Data)
	top := resp.Data[0]
	assert.Equal(t, "r-green-curry", top.RecipeID)
	assert.InDelta(t, 1.0, top.Similarity, 1e-6)
	assert.Equal(t, []string{"semantic"}, top.Sources)
	assert.Equal(t, "Thai green curry", top.Recipe.Name)
	assert.Equal(t, "public", top.Recipe.Visibility)
	assert.Equal(t, len(resp.Data), resp.Meta.Count)
	assert.Equal(t, 3, resp.Meta.Considered)
	assert.NotContains(t, ids(resp), "r-secret")
}

func TestSearchRouter_SemanticFilters(t *testing.T) {
	client := newClient(t, testembed.New())
	router := v1.NewSearchRouter(client).Routes()

	rec := postSearch(t, router, "/semantic",
		`{"query":"thai curry noodles","filter":{"difficulty":"MEDIUM"},"min_similarity":0.1}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"r-pad-thai"}, ids(decodeResults(t, rec)))

	rec = postSearch(t, router, "/semantic",
		`{"query":"thai curry","filter":{"tags":["Curry","spicy"]},"limit":1}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"r-green-curry"}, ids(decodeResults(t, rec)))
}

func TestSearchRouter_PrivateRecipes(t *testing.T) {
	client := newClient(t, testembed.New())
	router := v1.NewSearchRouter(client).Routes()
	body := `{"query":"curry noodles","include_private":true,"min_similarity":0.1}`

	rec := postSearch(t, router, "/semantic", body, map[string]string{middleware.ViewerHeader: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, ids(decodeResults(t, rec)), "r-secret")

	rec = postSearch(t, router, "/semantic", body, map[string]string{middleware.ViewerHeader: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, ids(decodeResults(t, rec)), "r-secret")
}

func TestSearchRouter_Hybrid(t *testing.T) {
	client := newClient(t, testembed.New())
	router := v1.NewSearchRouter(client).Routes()

	rec := postSearch(t, router, "/hybrid", `{"query":"noodles"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeResults(t, rec)
	require.NotEmpty(t, resp.Data)
	assert.Equal(t, "r-pad-thai", resp.Data[0].RecipeID)
	assert.ElementsMatch(t, []string{"semantic", "lexical"}, resp.Data[0].Sources)
}

func TestSearchRouter_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		failing    bool
		wantStatus int
	}{
		{"empty query", "/semantic", `{"query":"   "}`, false, http.StatusBadRequest},
		{"malformed body", "/semantic", `{"query":`, false, http.StatusBadRequest},
		{"provider down", "/semantic", `{"query":"curry"}`, true, http.StatusServiceUnavailable},
		{"provider down hybrid", "/hybrid", `{"query":"curry"}`, true, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := testembed.New()
			client := newClient(t, embedder)
			embedder.SetFailing(tt.failing)
			router := v1.NewSearchRouter(client).Routes()

			rec := postSearch(t, router, tt.path, tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var resp middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Error.Status)
		})
	}
}
