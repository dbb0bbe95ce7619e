// Package lexical provides a Bleve-backed search.LexicalStore.
package lexical

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/repository"
	"github.com/helixml/pantry/domain/search"
)

// Field boosts for text matches.
const (
	nameBoost        = 2.0
	tagBoost         = 1.5
	descriptionBoost = 1.0
)

var textFields = []struct {
	name  string
	boost float64
}{
	{"name", nameBoost},
	{"tags", tagBoost},
	{"description", descriptionBoost},
}

const rebuildPageSize = 500

// document is the indexed form of a recipe. Keyword fields are lowercased
// so filters compare case-insensitively.
type document struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        string   `json:"tags"`
	TagKeys     []string `json:"tag_keys"`
	Cuisine     string   `json:"cuisine"`
	Difficulty  string   `json:"difficulty"`
	Visibility  string   `json:"visibility"`
	Owner       string   `json:"owner"`
}

func newDocument(r recipe.Recipe) document {
	tags := r.Tags()
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = strings.ToLower(strings.TrimSpace(t))
	}
	return document{
		Name:        r.Name(),
		Description: r.Description(),
		Tags:        strings.Join(tags, " "),
		TagKeys:     keys,
		Cuisine:     strings.ToLower(r.Cuisine()),
		Difficulty:  strings.ToLower(r.Difficulty()),
		Visibility:  string(r.Visibility()),
		Owner:       r.OwnerID(),
	}
}

// BleveIndex is a full-text recipe index. It is a derived copy of the recipe
// table: Rebuild repopulates it and Index/Delete keep it current.
type BleveIndex struct {
	index  bleve.Index
	logger *slog.Logger
}

func indexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("description", text)
	doc.AddFieldMappingsAt("tags", text)

	keyword := bleve.NewKeywordFieldMapping()
	for _, field := range []string{"tag_keys", "cuisine", "difficulty", "visibility", "owner"} {
		doc.AddFieldMappingsAt(field, keyword)
	}

	im.AddDocumentMapping("recipe", doc)
	im.DefaultType = "recipe"
	im.DefaultMapping = doc
	return im
}

// NewBleveIndex opens the index at path, creating it if absent. An empty
// path creates an in-memory index.
func NewBleveIndex(path string, logger *slog.Logger) (*BleveIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path == "" {
		index, err := bleve.NewMemOnly(indexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory bleve index: %w", err)
		}
		return &BleveIndex{index: index, logger: logger}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open bleve index: %w", openErr)
		}
		return &BleveIndex{index: index, logger: logger}, nil
	}

	index, err := bleve.New(path, indexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &BleveIndex{index: index, logger: logger}, nil
}

// Index adds or replaces recipes in the index.
func (b *BleveIndex) Index(_ context.Context, recipes ...recipe.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, r := range recipes {
		if err := batch.Index(r.ID(), newDocument(r)); err != nil {
			return fmt.Errorf("index recipe %s: %w", r.ID(), err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("write bleve batch: %w", err)
	}
	return nil
}

// Delete removes a recipe from the index.
func (b *BleveIndex) Delete(_ context.Context, recipeID string) error {
	return b.index.Delete(recipeID)
}

// Rebuild indexes every recipe in the store.
func (b *BleveIndex) Rebuild(ctx context.Context, recipes recipe.Store) (int, error) {
	afterID := ""
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		page, err := recipes.Find(ctx, repository.WithAfterID(afterID), repository.WithLimit(rebuildPageSize))
		if err != nil {
			return total, fmt.Errorf("load recipes: %w", err)
		}
		if len(page) == 0 {
			break
		}
		if err := b.Index(ctx, page...); err != nil {
			return total, err
		}
		total += len(page)
		afterID = page[len(page)-1].ID()
	}
	b.logger.InfoContext(ctx, "rebuilt lexical index", slog.Int("recipes", total))
	return total, nil
}

// Count returns the number of indexed recipes.
func (b *BleveIndex) Count() (uint64, error) {
	return b.index.DocCount()
}

// Find matches query terms against name, tags and description. Scores are
// divided by the best score so they fall in (0, 1].
func (b *BleveIndex) Find(ctx context.Context, query string, filter search.Filter, limit int) ([]search.LexicalHit, error) {
	terms := search.Terms(query)
	if len(terms) == 0 {
		return []search.LexicalHit{}, nil
	}
	if limit <= 0 {
		limit = search.MaxLimit
	}

	text := make([]blevequery.Query, 0, len(textFields))
	for _, f := range textFields {
		mq := bleve.NewMatchQuery(strings.Join(terms, " "))
		mq.SetField(f.name)
		mq.SetBoost(f.boost)
		text = append(text, mq)
	}

	q := bleve.NewBooleanQuery()
	q.AddMust(bleve.NewDisjunctionQuery(text...))
	q.AddMust(visibilityQuery(filter.Scope()))
	if cuisine := filter.Cuisine(); cuisine != "" {
		q.AddMust(termQuery("cuisine", strings.ToLower(cuisine)))
	}
	if difficulty := filter.Difficulty(); difficulty != "" {
		q.AddMust(termQuery("difficulty", strings.ToLower(difficulty)))
	}
	for _, tag := range filter.Tags() {
		q.AddMust(termQuery("tag_keys", tag))
	}
	if excluded := filter.ExcludeIDs(); len(excluded) > 0 {
		q.AddMustNot(bleve.NewDocIDQuery(excluded))
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}
	if len(results.Hits) == 0 {
		return []search.LexicalHit{}, nil
	}

	best := results.Hits[0].Score
	for _, hit := range results.Hits {
		best = max(best, hit.Score)
	}

	hits := make([]search.LexicalHit, len(results.Hits))
	for i, hit := range results.Hits {
		score := 1.0
		if best > 0 {
			score = hit.Score / best
		}
		hits[i] = search.NewLexicalHit(hit.ID, score)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score() != hits[j].Score() {
			return hits[i].Score() > hits[j].Score()
		}
		return hits[i].RecipeID() < hits[j].RecipeID()
	})
	return hits, nil
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

func termQuery(field, value string) blevequery.Query {
	tq := bleve.NewTermQuery(value)
	tq.SetField(field)
	return tq
}

func visibilityQuery(scope search.Scope) blevequery.Query {
	shared := []blevequery.Query{
		termQuery("visibility", string(recipe.VisibilityPublic)),
		termQuery("visibility", string(recipe.VisibilitySystem)),
	}
	if scope.IncludesOwnPrivate() {
		shared = append(shared, bleve.NewConjunctionQuery(
			termQuery("visibility", string(recipe.VisibilityPrivate)),
			termQuery("owner", scope.ViewerID()),
		))
	}
	return bleve.NewDisjunctionQuery(shared...)
}

var _ search.LexicalStore = (*BleveIndex)(nil)
