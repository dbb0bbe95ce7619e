// Package mcp exposes recipe search to Model Context Protocol clients.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/search"
)

// Searcher ranks recipes for a query.
type Searcher interface {
	Semantic(ctx context.Context, query string, filter search.Filter, opts ...search.Option) (search.Results, error)
	Hybrid(ctx context.Context, query string, filter search.Filter, opts ...search.Option) (search.Results, error)
}

// SimilarFinder ranks recipes against another recipe.
type SimilarFinder interface {
	Find(ctx context.Context, recipeID string, opts ...search.Option) (search.Results, error)
}

// Server wraps the MCP server with the recipe tools.
type Server struct {
	mcpServer *server.MCPServer
	searcher  Searcher
	similar   SimilarFinder
	version   string
	logger    *slog.Logger
}

// NewServer creates a new MCP server.
func NewServer(searcher Searcher, similar SimilarFinder, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		searcher: searcher,
		similar:  similar,
		version:  version,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"pantry",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over stdin and stdout until they close.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func searchToolOptions(description string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What the user is looking for, in natural language"),
		),
		mcp.WithString("cuisine", mcp.Description("Only recipes of this cuisine")),
		mcp.WithString("difficulty", mcp.Description("Only recipes of this difficulty")),
		mcp.WithArray("tags",
			mcp.Description("Only recipes carrying every one of these tags"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20, max 100)")),
		mcp.WithNumber("min_similarity", mcp.Description("Minimum cosine similarity, 0 to 1")),
		mcp.WithString("viewer_id", mcp.Description("User on whose behalf the search runs")),
		mcp.WithBoolean("include_private", mcp.Description("Include the viewer's private recipes")),
	}
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("semantic_search", searchToolOptions("Find recipes whose meaning is closest to the query")...),
		s.handleSemantic,
	)
	mcpServer.AddTool(
		mcp.NewTool("hybrid_search", searchToolOptions("Find recipes by meaning and by matching words in name, description and tags")...),
		s.handleHybrid,
	)
	mcpServer.AddTool(
		mcp.NewTool("find_similar",
			mcp.WithDescription("Find recipes similar to a given recipe"),
			mcp.WithString("recipe_id", mcp.Required(), mcp.Description("ID of the source recipe")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 6)")),
			mcp.WithNumber("min_similarity", mcp.Description("Minimum cosine similarity, 0 to 1")),
			mcp.WithString("viewer_id", mcp.Description("User on whose behalf the lookup runs")),
		),
		s.handleSimilar,
	)
	mcpServer.AddTool(
		mcp.NewTool("get_version", mcp.WithDescription("Get the pantry server version")),
		func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(s.version), nil
		},
	)
}

func (s *Server) handleSemantic(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runSearch(ctx, request, s.searcher.Semantic)
}

func (s *Server) handleHybrid(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.runSearch(ctx, request, s.searcher.Hybrid)
}

type searchFunc func(ctx context.Context, query string, filter search.Filter, opts ...search.Option) (search.Results, error)

func (s *Server) runSearch(ctx context.Context, request mcp.CallToolRequest, run searchFunc) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}

	var filterOpts []search.FilterOption
	if v := request.GetString("cuisine", ""); v != "" {
		filterOpts = append(filterOpts, search.WithCuisine(v))
	}
	if v := request.GetString("difficulty", ""); v != "" {
		filterOpts = append(filterOpts, search.WithDifficulty(v))
	}
	if tags := request.GetStringSlice("tags", nil); len(tags) > 0 {
		filterOpts = append(filterOpts, search.WithTags(tags...))
	}

	opts := append(rankOptions(request),
		search.WithIncludePrivate(request.GetBool("include_private", false)),
	)

	results, err := run(ctx, query, search.NewFilter(filterOpts...), opts...)
	if err != nil {
		return s.toolError(ctx, request.Params.Name, err), nil
	}
	return resultsText(results)
}

func (s *Server) handleSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("recipe_id")
	if err != nil {
		return mcp.NewToolResultError("recipe_id is required"), nil
	}

	opts := append(rankOptions(request), search.WithIncludePrivate(true))
	results, err := s.similar.Find(ctx, id, opts...)
	if err != nil {
		return s.toolError(ctx, request.Params.Name, err), nil
	}
	return resultsText(results)
}

// rankOptions reads the arguments shared by every ranking tool.
func rankOptions(request mcp.CallToolRequest) []search.Option {
	opts := []search.Option{search.WithViewer(request.GetString("viewer_id", ""))}
	if n := request.GetInt("limit", 0); n > 0 {
		opts = append(opts, search.WithLimit(n))
	}
	if args := request.GetArguments(); args != nil {
		if _, ok := args["min_similarity"]; ok {
			opts = append(opts, search.WithMinSimilarity(request.GetFloat("min_similarity", 0)))
		}
	}
	return opts
}

func (s *Server) toolError(ctx context.Context, tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		return mcp.NewToolResultError(err.Error())
	case errors.Is(err, recipe.ErrNotFound):
		return mcp.NewToolResultError("recipe not found")
	case errors.Is(err, search.ErrEmbeddingUnavailable):
		s.logger.WarnContext(ctx, "tool call failed", slog.String("tool", tool), slog.Any("error", err))
		return mcp.NewToolResultError("search is temporarily unavailable")
	default:
		s.logger.ErrorContext(ctx, "tool call failed", slog.String("tool", tool), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("%s failed", tool))
	}
}

type toolHit struct {
	RecipeID   string   `json:"recipe_id"`
	Name       string   `json:"name"`
	Cuisine    string   `json:"cuisine,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Similarity float64  `json:"similarity"`
	Score      float64  `json:"score"`
	Sources    []string `json:"sources"`
}

type toolResults struct {
	Results    []toolHit `json:"results"`
	Considered int       `json:"considered"`
}

func resultsText(results search.Results) (*mcp.CallToolResult, error) {
	out := toolResults{Results: []toolHit{}, Considered: results.Considered()}
	for _, h := range results.Hits() {
		summary := h.Summary()
		out.Results = append(out.Results, toolHit{
			RecipeID:   h.RecipeID(),
			Name:       summary.Name,
			Cuisine:    summary.Cuisine,
			Difficulty: summary.Difficulty,
			Tags:       summary.Tags,
			Similarity: h.Similarity(),
			Score:      h.Score(),
			Sources:    h.Sources().Names(),
		})
	}

	b, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
