// Package v1 implements the version 1 HTTP API.
package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/pantry"
	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/infrastructure/api/middleware"
	"github.com/helixml/pantry/infrastructure/api/v1/dto"
)

// SearchRouter handles search API endpoints.
type SearchRouter struct {
	client *pantry.Client
	logger *slog.Logger
}

// NewSearchRouter creates a new SearchRouter.
func NewSearchRouter(client *pantry.Client) *SearchRouter {
	return &SearchRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for search endpoints.
func (r *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/semantic", r.Semantic)
	router.Post("/hybrid", r.Hybrid)

	return router
}

// Semantic handles POST /api/v1/search/semantic.
func (r *SearchRouter) Semantic(w http.ResponseWriter, req *http.Request) {
	body, ok := r.decode(w, req)
	if !ok {
		return
	}

	filter, opts := buildSearch(body, middleware.ViewerID(req))
	results, err := r.client.Search.Semantic(req.Context(), body.Query, filter, opts...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toResultsResponse(results))
}

// Hybrid handles POST /api/v1/search/hybrid.
func (r *SearchRouter) Hybrid(w http.ResponseWriter, req *http.Request) {
	body, ok := r.decode(w, req)
	if !ok {
		return
	}

	filter, opts := buildSearch(body, middleware.ViewerID(req))
	results, err := r.client.Search.Hybrid(req.Context(), body.Query, filter, opts...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toResultsResponse(results))
}

func (r *SearchRouter) decode(w http.ResponseWriter, req *http.Request) (dto.SearchRequest, bool) {
	var body dto.SearchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "request body must be a JSON search request", err), r.logger)
		return dto.SearchRequest{}, false
	}
	return body, true
}

func buildSearch(body dto.SearchRequest, viewerID string) (search.Filter, []search.Option) {
	var filterOpts []search.FilterOption
	if f := body.Filter; f != nil {
		if f.Cuisine != "" {
			filterOpts = append(filterOpts, search.WithCuisine(f.Cuisine))
		}
		if f.Difficulty != "" {
			filterOpts = append(filterOpts, search.WithDifficulty(f.Difficulty))
		}
		if len(f.Tags) > 0 {
			filterOpts = append(filterOpts, search.WithTags(f.Tags...))
		}
	}

	opts := []search.Option{
		search.WithViewer(viewerID),
		search.WithIncludePrivate(body.IncludePrivate),
	}
	if body.Limit != nil {
		opts = append(opts, search.WithLimit(*body.Limit))
	}
	if body.MinSimilarity != nil {
		opts = append(opts, search.WithMinSimilarity(*body.MinSimilarity))
	}
	return search.NewFilter(filterOpts...), opts
}

func toResultsResponse(results search.Results) dto.ResultsResponse {
	hits := results.Hits()
	data := make([]dto.Hit, 0, len(hits))
	for _, h := range hits {
		s := h.Summary()
		tags := s.Tags
		if tags == nil {
			tags = []string{}
		}
		data = append(data, dto.Hit{
			RecipeID:   h.RecipeID(),
			Similarity: h.Similarity(),
			Score:      h.Score(),
			Sources:    h.Sources().Names(),
			Recipe: dto.RecipeSummary{
				Name:        s.Name,
				Description: s.Description,
				Cuisine:     s.Cuisine,
				Difficulty:  s.Difficulty,
				Tags:        tags,
				Visibility:  s.Visibility.String(),
			},
		})
	}
	return dto.ResultsResponse{
		Data: data,
		Meta: dto.ResultsMeta{Considered: results.Considered(), Count: len(data)},
	}
}
