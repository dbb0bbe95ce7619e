package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/pantry"
	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/infrastructure/api/middleware"
)

// RecipesRouter handles per-recipe endpoints.
type RecipesRouter struct {
	client *pantry.Client
	logger *slog.Logger
}

// NewRecipesRouter creates a new RecipesRouter.
func NewRecipesRouter(client *pantry.Client) *RecipesRouter {
	return &RecipesRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for recipe endpoints.
func (r *RecipesRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/{id}/similar", r.Similar)

	return router
}

// Similar handles GET /api/v1/recipes/{id}/similar.
func (r *RecipesRouter) Similar(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	opts := []search.Option{
		search.WithViewer(middleware.ViewerID(req)),
		search.WithIncludePrivate(true),
	}
	query := req.URL.Query()
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "limit must be an integer", err), r.logger)
			return
		}
		opts = append(opts, search.WithLimit(n))
	}
	if v := query.Get("min_similarity"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "min_similarity must be a number", err), r.logger)
			return
		}
		opts = append(opts, search.WithMinSimilarity(f))
	}

	results, err := r.client.Similar.Find(req.Context(), id, opts...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toResultsResponse(results))
}
