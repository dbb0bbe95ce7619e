package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/helixml/pantry"
	"github.com/helixml/pantry/infrastructure/api/middleware"
	v1 "github.com/helixml/pantry/infrastructure/api/v1"
	"github.com/helixml/pantry/infrastructure/api/v1/dto"
	mcpinternal "github.com/helixml/pantry/internal/mcp"
)

// APIServer provides an HTTP API backed by a pantry Client.
type APIServer struct {
	client  *pantry.Client
	version string
	opts    []ServerOption
	server  *Server
}

// NewAPIServer creates a new APIServer wired to the given Client.
func NewAPIServer(client *pantry.Client, version string, opts ...ServerOption) *APIServer {
	return &APIServer{client: client, version: version, opts: opts}
}

// Handler returns every route as an http.Handler, without the server
// middleware stack.
func (a *APIServer) Handler() http.Handler {
	router := chi.NewRouter()
	a.MountRoutes(router)
	return router
}

// MountRoutes registers the health, v1 and MCP routes on router.
func (a *APIServer) MountRoutes(router chi.Router) {
	c := a.client

	router.Get("/healthz", a.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))
		r.Mount("/search", v1.NewSearchRouter(c).Routes())
		r.Mount("/recipes", v1.NewRecipesRouter(c).Routes())
	})

	// MCP streams responses, so it sits outside the timeout group.
	mcpSrv := mcpinternal.NewServer(c.Search, c.Similar, a.version, c.Logger())
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
}

func (a *APIServer) health(w http.ResponseWriter, r *http.Request) {
	status, err := a.client.Status(r.Context())
	if err != nil {
		middleware.WriteError(w, r, err, a.client.Logger())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.HealthResponse{
		Status:     "ok",
		Model:      status.Model.Name(),
		Dimension:  status.Model.Dimension(),
		Recipes:    status.Recipes,
		Embeddings: status.Embeddings,
		Lexical:    string(status.Lexical),
	})
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	srv := NewServer(addr, a.client.Logger(), a.opts...)
	a.server = &srv
	a.MountRoutes(srv.Router())
	return srv.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
