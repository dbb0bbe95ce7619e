package search

import "github.com/helixml/pantry/domain/recipe"

// Source records which ranked list a hit came from.
type Source uint8

// Source flags.
const (
	SourceSemantic Source = 1 << iota
	SourceLexical
)

// Has reports whether s includes other.
func (s Source) Has(other Source) bool { return s&other == other }

// Names returns the source names, semantic first.
func (s Source) Names() []string {
	names := []string{}
	if s.Has(SourceSemantic) {
		names = append(names, "semantic")
	}
	if s.Has(SourceLexical) {
		names = append(names, "lexical")
	}
	return names
}

// Summary is the caller-facing projection of a recipe.
type Summary struct {
	Name        string
	Description string
	Cuisine     string
	Difficulty  string
	Tags        []string
	Visibility  recipe.Visibility
}

// SummaryOf builds a Summary from a recipe.
func SummaryOf(r recipe.Recipe) Summary {
	return Summary{
		Name:        r.Name(),
		Description: r.Description(),
		Cuisine:     r.Cuisine(),
		Difficulty:  r.Difficulty(),
		Tags:        r.Tags(),
		Visibility:  r.Visibility(),
	}
}

// Hit is one ranked recipe.
type Hit struct {
	recipeID   string
	similarity float64
	score      float64
	lexical    float64
	sources    Source
	summary    Summary
}

// NewHit creates a semantic hit whose score is its similarity.
func NewHit(recipeID string, similarity float64) Hit {
	return Hit{
		recipeID:   recipeID,
		similarity: similarity,
		score:      similarity,
		sources:    SourceSemantic,
	}
}

// RecipeID returns the recipe ID.
func (h Hit) RecipeID() string { return h.recipeID }

// Similarity returns the cosine similarity between the query and the recipe.
func (h Hit) Similarity() float64 { return h.similarity }

// Score returns the ranking score. For semantic results it equals Similarity;
// hybrid results carry the fused score.
func (h Hit) Score() float64 { return h.score }

// LexicalScore returns the normalised text-match score, zero when the hit
// did not come from the lexical list.
func (h Hit) LexicalScore() float64 { return h.lexical }

// Sources returns which lists produced the hit.
func (h Hit) Sources() Source { return h.sources }

// Summary returns the recipe summary.
func (h Hit) Summary() Summary { return h.summary }

// WithSummary returns a copy of the hit annotated with a summary.
func (h Hit) WithSummary(s Summary) Hit {
	h.summary = s
	return h
}

// Results is an ordered list of hits plus the number of candidates the
// ranking was computed over.
type Results struct {
	hits       []Hit
	considered int
}

// NewResults creates Results.
func NewResults(hits []Hit, considered int) Results {
	return Results{hits: append([]Hit(nil), hits...), considered: considered}
}

// EmptyResults returns Results with no hits.
func EmptyResults() Results { return Results{hits: []Hit{}} }

// Hits returns the ranked hits.
func (r Results) Hits() []Hit { return append([]Hit(nil), r.hits...) }

// Len returns the number of hits.
func (r Results) Len() int { return len(r.hits) }

// Considered returns the number of candidates ranked.
func (r Results) Considered() int { return r.considered }

// RecipeIDs returns the hit recipe IDs in rank order.
func (r Results) RecipeIDs() []string {
	ids := make([]string, len(r.hits))
	for i, h := range r.hits {
		ids[i] = h.recipeID
	}
	return ids
}

// LexicalHit is one result of a text-match search.
type LexicalHit struct {
	recipeID string
	score    float64
}

// NewLexicalHit creates a LexicalHit. Scores are clamped to [0, 1].
func NewLexicalHit(recipeID string, score float64) LexicalHit {
	return LexicalHit{recipeID: recipeID, score: max(0, min(1, score))}
}

// RecipeID returns the recipe ID.
func (l LexicalHit) RecipeID() string { return l.recipeID }

// Score returns the normalised score.
func (l LexicalHit) Score() float64 { return l.score }

// Document is a piece of text to embed on behalf of a recipe.
type Document struct {
	recipeID string
	text     string
}

// NewDocument creates a new Document.
func NewDocument(recipeID, text string) Document {
	return Document{recipeID: recipeID, text: text}
}

// RecipeID returns the recipe ID.
func (d Document) RecipeID() string { return d.recipeID }

// Text returns the text to embed.
func (d Document) Text() string { return d.text }
