// Package dto holds the JSON request and response shapes of the v1 API.
package dto

// SearchFilter restricts a search.
type SearchFilter struct {
	Cuisine    string   `json:"cuisine,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// SearchRequest is the body of the semantic and hybrid search endpoints.
type SearchRequest struct {
	Query          string        `json:"query"`
	Filter         *SearchFilter `json:"filter,omitempty"`
	Limit          *int          `json:"limit,omitempty"`
	MinSimilarity  *float64      `json:"min_similarity,omitempty"`
	IncludePrivate bool          `json:"include_private,omitempty"`
}

// RecipeSummary is the recipe projection returned with each hit.
type RecipeSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Cuisine     string   `json:"cuisine,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Tags        []string `json:"tags"`
	Visibility  string   `json:"visibility"`
}

// Hit is one ranked recipe.
type Hit struct {
	RecipeID   string        `json:"recipe_id"`
	Similarity float64       `json:"similarity"`
	Score      float64       `json:"score"`
	Sources    []string      `json:"sources"`
	Recipe     RecipeSummary `json:"recipe"`
}

// ResultsMeta describes a result list.
type ResultsMeta struct {
	Considered int `json:"considered"`
	Count      int `json:"count"`
}

// ResultsResponse is the response of every ranking endpoint.
type ResultsResponse struct {
	Data []Hit       `json:"data"`
	Meta ResultsMeta `json:"meta"`
}

// HealthResponse is the response of the health endpoint.
type HealthResponse struct {
	Status     string `json:"status"`
	Model      string `json:"model"`
	Dimension  int    `json:"dimension"`
	Recipes    int64  `json:"recipes"`
	Embeddings int64  `json:"embeddings"`
	Lexical    string `json:"lexical"`
}
