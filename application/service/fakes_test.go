package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/infrastructure/persistence"
	"github.com/helixml/pantry/internal/database"
	"github.com/helixml/pantry/internal/testdb"
)

// vocabulary is the fixed term space of the fake embedder. Each term owns one
// dimension; text outside the vocabulary contributes nothing.
var vocabulary = []string{"thai", "curry", "noodles", "chocolate", "cake"}

var errProviderDown = errors.New("provider down")

// vocabEmbedder turns text into a presence vector over vocabulary.
type vocabEmbedder struct {
	calls     atomic.Int64
	texts     atomic.Int64
	fail      atomic.Bool
	delay     time.Duration
	dimension int
}

func newVocabEmbedder() *vocabEmbedder {
	return &vocabEmbedder{dimension: len(vocabulary)}
}

func (e *vocabEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	e.texts.Add(int64(len(texts)))
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.fail.Load() {
		return nil, errProviderDown
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, e.dimension)
		for _, term := range search.Terms(text) {
			for d, word := range vocabulary {
				if d < e.dimension && term == word {
					v[d] = 1
				}
			}
		}
		out[i] = v
	}
	return out, nil
}

// failingLexical is a lexical store that always errors.
type failingLexical struct{}

func (failingLexical) Find(context.Context, string, search.Filter, int) ([]search.LexicalHit, error) {
	return nil, errors.New("lexical index offline")
}

// fixedLexical returns canned hits regardless of the query.
type fixedLexical struct {
	hits []search.LexicalHit
}

func (f fixedLexical) Find(context.Context, string, search.Filter, int) ([]search.LexicalHit, error) {
	return f.hits, nil
}

// kitchen bundles a database with services over it.
type kitchen struct {
	db       database.Database
	recipes  persistence.RecipeStore
	store    *persistence.SQLiteVectorStore
	embedder *vocabEmbedder
	model    search.Model
	backfill *Backfill
	search   *Search
	similar  *Similar
}

func fixtureRecipes() []recipe.Recipe {
	public := func(id, name string, opts ...recipe.Option) recipe.Recipe {
		opts = append([]recipe.Option{recipe.WithOwner("chef"), recipe.WithVisibility(recipe.VisibilityPublic)}, opts...)
		return recipe.New(id, name, opts...)
	}
	return []recipe.Recipe{
		public("r-curry", "Thai Curry", recipe.WithCuisine("Thai")),
		public("r-padthai", "Pad Thai Noodles", recipe.WithCuisine("Thai")),
		public("r-cake", "Chocolate Cake", recipe.WithCuisine("French")),
		recipe.New("r-private", "Secret Curry", recipe.WithOwner("alice")),
	}
}

func newKitchen(t *testing.T, opts ...SearchOption) *kitchen {
	t.Helper()
	db, recipes := testdb.WithRecipes(t, fixtureRecipes()...)
	embedder := newVocabEmbedder()
	model, err := search.NewModel("vocab", len(vocabulary))
	require.NoError(t, err)
	store := persistence.NewSQLiteVectorStore(db, nil)

	backfill := NewBackfill(recipes, store, embedder, model, nil, WithBackfillWorkers(2))
	opts = append([]SearchOption{WithLexicalStore(persistence.NewSQLLexicalStore(db))}, opts...)
	return &kitchen{
		db:       db,
		recipes:  recipes,
		store:    store,
		embedder: embedder,
		model:    model,
		backfill: backfill,
		search:   NewSearch(embedder, store, recipes, model, nil, opts...),
		similar:  NewSimilar(recipes, backfill, store, nil),
	}
}

// embedAll backfills every fixture recipe and resets the call counters.
func (k *kitchen) embedAll(t *testing.T) {
	t.Helper()
	_, err := k.backfill.Run(context.Background())
	require.NoError(t, err)
	k.embedder.calls.Store(0)
	k.embedder.texts.Store(0)
}

func (k *kitchen) vectorCount(t *testing.T) int64 {
	t.Helper()
	n, err := k.store.Count(context.Background(), k.model)
	require.NoError(t, err)
	return n
}

func hitIDs(r search.Results) []string {
	return r.RecipeIDs()
}

// countingStore records upserts made through an EmbeddingStore.
type countingStore struct {
	search.EmbeddingStore
	mu      sync.Mutex
	upserts int
}

func (c *countingStore) Upsert(ctx context.Context, model search.Model, e search.Embedding) (search.Embedding, error) {
	c.mu.Lock()
	c.upserts++
	c.mu.Unlock()
	return c.EmbeddingStore.Upsert(ctx, model, e)
}
