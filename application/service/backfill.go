package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/singleflight"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/repository"
	"github.com/helixml/pantry/domain/search"
)

// Backfill defaults.
const (
	DefaultBackfillWorkers  = 4
	DefaultBackfillPageSize = 100

	// DefaultSharedTimeout bounds a provider call shared between callers.
	// It runs detached from any single caller's context.
	DefaultSharedTimeout = 30 * time.Second
)

// BackfillReport summarises a batch backfill run.
type BackfillReport struct {
	Scanned   int
	Embedded  int
	Refreshed int
	Skipped   int
	Failed    int
}

// BackfillOption configures a Backfill.
type BackfillOption func(*Backfill)

// WithBackfillWorkers sets the number of concurrent provider batches.
func WithBackfillWorkers(n int) BackfillOption {
	return func(b *Backfill) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithBackfillPageSize sets how many recipes are loaded per page.
func WithBackfillPageSize(n int) BackfillOption {
	return func(b *Backfill) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

// WithTokenBudget sets the text cap and provider batch size.
func WithTokenBudget(budget search.TokenBudget) BackfillOption {
	return func(b *Backfill) {
		b.budget = budget
	}
}

// WithSharedTimeout bounds the shared work behind Ensure and Refresh.
func WithSharedTimeout(d time.Duration) BackfillOption {
	return func(b *Backfill) {
		if d > 0 {
			b.sharedTimeout = d
		}
	}
}

// Backfill creates embedding records for recipes that lack one under the
// active model. Single recipes are embedded lazily through Ensure; whole
// collections through Run.
type Backfill struct {
	recipes  recipe.Store
	store    search.EmbeddingStore
	embedder search.Embedder
	model    search.Model
	budget   search.TokenBudget
	workers  int
	pageSize int
	inflight *singleflight.Group
	logger   *slog.Logger

	sharedTimeout time.Duration
}

// NewBackfill creates a new Backfill service.
func NewBackfill(
	recipes recipe.Store,
	store search.EmbeddingStore,
	embedder search.Embedder,
	model search.Model,
	logger *slog.Logger,
	opts ...BackfillOption,
) *Backfill {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backfill{
		recipes:  recipes,
		store:    store,
		embedder: embedder,
		model:    model,
		budget:   search.DefaultTokenBudget(),
		workers:  DefaultBackfillWorkers,
		pageSize: DefaultBackfillPageSize,
		inflight: &singleflight.Group{},
		logger:   logger,

		sharedTimeout: DefaultSharedTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Model returns the active embedding model.
func (b *Backfill) Model() search.Model { return b.model }

// Ensure returns the recipe's embedding record, creating it if absent. An
// existing record is returned without calling the provider. Concurrent calls
// for the same recipe share one provider call and one write.
func (b *Backfill) Ensure(ctx context.Context, r recipe.Recipe) (search.Embedding, error) {
	return b.shared(ctx, b.key("ensure", r.ID()), func(ctx context.Context) (search.Embedding, error) {
		existing, err := b.store.Get(ctx, b.model, r.ID())
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, search.ErrEmbeddingNotFound) {
			return search.Embedding{}, err
		}
		return b.embed(ctx, r)
	})
}

// EnsureByID loads a recipe and ensures its embedding record.
func (b *Backfill) EnsureByID(ctx context.Context, recipeID string) (search.Embedding, error) {
	r, err := b.recipes.Get(ctx, recipeID)
	if err != nil {
		return search.Embedding{}, err
	}
	return b.Ensure(ctx, r)
}

// Refresh re-embeds the recipe when its stored source text no longer matches
// the text it synthesizes to now. It reports whether a provider call was made.
func (b *Backfill) Refresh(ctx context.Context, r recipe.Recipe) (search.Embedding, bool, error) {
	existing, err := b.store.Get(ctx, b.model, r.ID())
	if errors.Is(err, search.ErrEmbeddingNotFound) {
		e, err := b.Ensure(ctx, r)
		return e, err == nil, err
	}
	if err != nil {
		return search.Embedding{}, false, err
	}
	if !existing.IsStale(b.sourceText(r)) {
		return existing, false, nil
	}

	e, err := b.shared(ctx, b.key("refresh", r.ID()), func(ctx context.Context) (search.Embedding, error) {
		return b.embed(ctx, r)
	})
	if err != nil {
		return search.Embedding{}, false, err
	}
	return e, true, nil
}

// Purge deletes embedding records produced by any model other than the
// active one.
func (b *Backfill) Purge(ctx context.Context) (int64, error) {
	n, err := b.store.DeleteOtherModels(ctx, b.model)
	if err != nil {
		return 0, err
	}
	b.logger.InfoContext(ctx, "purged superseded embeddings",
		slog.String("model", b.model.String()),
		slog.Int64("deleted", n),
	)
	return n, nil
}

// shared runs fn once per key across concurrent callers. The work runs on a
// context that keeps the first caller's values but not its cancellation, so
// one caller giving up never fails the others waiting on the same key. Each
// caller still returns as soon as its own context is done.
func (b *Backfill) shared(ctx context.Context, key string, fn func(context.Context) (search.Embedding, error)) (search.Embedding, error) {
	ch := b.inflight.DoChan(key, func() (any, error) {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.sharedTimeout)
		defer cancel()
		return fn(wctx)
	})
	select {
	case <-ctx.Done():
		return search.Embedding{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return search.Embedding{}, res.Err
		}
		return res.Val.(search.Embedding), nil
	}
}

func (b *Backfill) key(op, recipeID string) string {
	return op + "|" + b.model.String() + "|" + recipeID
}

func (b *Backfill) sourceText(r recipe.Recipe) string {
	return b.budget.Truncate(search.Synthesize(r))
}

// embed synthesizes, embeds and stores a single recipe.
func (b *Backfill) embed(ctx context.Context, r recipe.Recipe) (search.Embedding, error) {
	text := b.sourceText(r)
	if text == "" {
		b.logger.DebugContext(ctx, "skipping recipe with no embeddable text", slog.String("recipe_id", r.ID()))
		return search.Embedding{}, fmt.Errorf("%w: recipe %s", search.ErrEmptySourceText, r.ID())
	}

	vectors, err := b.embedder.Embed(ctx, []string{text})
	if err != nil {
		return search.Embedding{}, unavailable(fmt.Errorf("embed recipe %s: %w", r.ID(), err))
	}
	if len(vectors) != 1 {
		return search.Embedding{}, fmt.Errorf("%w: provider returned %d vectors for 1 text",
			search.ErrEmbeddingUnavailable, len(vectors))
	}

	stored, err := b.store.Upsert(ctx, b.model, search.NewEmbedding(r.ID(), b.model.Name(), text, vectors[0]))
	if err != nil {
		return search.Embedding{}, err
	}
	b.logger.DebugContext(ctx, "embedded recipe",
		slog.String("recipe_id", r.ID()),
		slog.String("model", b.model.Name()),
	)
	return stored, nil
}

// RunOption configures a batch backfill run.
type RunOption func(*runConfig)

type runConfig struct {
	refresh  bool
	progress func(BackfillReport)
}

// WithRefresh also re-embeds records whose source text is stale.
func WithRefresh() RunOption {
	return func(c *runConfig) {
		c.refresh = true
	}
}

// WithProgress registers a callback invoked after every provider batch.
func WithProgress(fn func(BackfillReport)) RunOption {
	return func(c *runConfig) {
		c.progress = fn
	}
}

// tally accumulates a BackfillReport across pool workers.
type tally struct {
	mu       sync.Mutex
	report   BackfillReport
	progress func(BackfillReport)
}

func (t *tally) add(fn func(r *BackfillReport)) {
	t.mu.Lock()
	fn(&t.report)
	snapshot := t.report
	t.mu.Unlock()
	if t.progress != nil {
		t.progress(snapshot)
	}
}

func (t *tally) snapshot() BackfillReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.report
}

// Run embeds every recipe missing a record for the active model. Texts are
// grouped into provider batches and embedded on a worker pool. A failed
// batch is logged and counted; it never aborts the run.
func (b *Backfill) Run(ctx context.Context, opts ...RunOption) (BackfillReport, error) {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := ants.NewPool(b.workers)
	if err != nil {
		return BackfillReport{}, fmt.Errorf("create backfill pool: %w", err)
	}
	defer pool.Release()

	t := &tally{progress: cfg.progress}
	var wg sync.WaitGroup

	b.logger.InfoContext(ctx, "starting embedding backfill",
		slog.String("model", b.model.String()),
		slog.Int("workers", b.workers),
		slog.Bool("refresh", cfg.refresh),
	)

	if err := b.scanMissing(ctx, pool, &wg, t); err != nil {
		wg.Wait()
		return t.snapshot(), err
	}
	if cfg.refresh {
		if err := b.scanStale(ctx, pool, &wg, t); err != nil {
			wg.Wait()
			return t.snapshot(), err
		}
	}
	wg.Wait()

	report := t.snapshot()
	b.logger.InfoContext(ctx, "embedding backfill finished",
		slog.String("model", b.model.String()),
		slog.Int("scanned", report.Scanned),
		slog.Int("embedded", report.Embedded),
		slog.Int("refreshed", report.Refreshed),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report, ctx.Err()
}

func (b *Backfill) scanMissing(ctx context.Context, pool *ants.Pool, wg *sync.WaitGroup, t *tally) error {
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := b.store.Missing(ctx, b.model, afterID, b.pageSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		afterID = ids[len(ids)-1]

		recipes, err := b.recipes.Find(ctx, repository.WithIDIn(ids))
		if err != nil {
			return fmt.Errorf("load recipes: %w", err)
		}
		t.add(func(r *BackfillReport) { r.Scanned += len(ids) })

		b.submit(ctx, pool, wg, t, b.documents(recipes, t), false)
	}
}

func (b *Backfill) scanStale(ctx context.Context, pool *ants.Pool, wg *sync.WaitGroup, t *tally) error {
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		recipes, err := b.recipes.Find(ctx, repository.WithAfterID(afterID), repository.WithLimit(b.pageSize))
		if err != nil {
			return fmt.Errorf("load recipes: %w", err)
		}
		if len(recipes) == 0 {
			return nil
		}
		afterID = recipes[len(recipes)-1].ID()

		var stale []recipe.Recipe
		for _, r := range recipes {
			existing, err := b.store.Get(ctx, b.model, r.ID())
			if errors.Is(err, search.ErrEmbeddingNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if existing.IsStale(b.sourceText(r)) {
				stale = append(stale, r)
			}
		}
		b.submit(ctx, pool, wg, t, b.documents(stale, t), true)
	}
}

// documents synthesizes recipes into provider documents, counting recipes
// with nothing to embed as skipped.
func (b *Backfill) documents(recipes []recipe.Recipe, t *tally) []search.Document {
	docs := make([]search.Document, 0, len(recipes))
	skipped := 0
	for _, r := range recipes {
		text := b.sourceText(r)
		if text == "" {
			skipped++
			continue
		}
		docs = append(docs, search.NewDocument(r.ID(), text))
	}
	if skipped > 0 {
		t.add(func(r *BackfillReport) { r.Skipped += skipped })
	}
	return docs
}

func (b *Backfill) submit(ctx context.Context, pool *ants.Pool, wg *sync.WaitGroup, t *tally, docs []search.Document, refresh bool) {
	for _, batch := range b.budget.Batches(docs) {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			b.embedBatch(ctx, batch, refresh, t)
		})
		if err != nil {
			wg.Done()
			b.logger.WarnContext(ctx, "backfill batch rejected by pool", slog.Any("error", err))
			t.add(func(r *BackfillReport) { r.Failed += len(batch) })
		}
	}
}

func (b *Backfill) embedBatch(ctx context.Context, batch []search.Document, refresh bool, t *tally) {
	texts := make([]string, len(batch))
	for i, d := range batch {
		texts[i] = d.Text()
	}

	vectors, err := b.embedder.Embed(ctx, texts)
	if err == nil && len(vectors) != len(batch) {
		err = fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(batch))
	}
	if err != nil {
		b.logger.WarnContext(ctx, "embedding batch failed",
			slog.Int("size", len(batch)),
			slog.String("first_recipe_id", batch[0].RecipeID()),
			slog.Any("error", err),
		)
		t.add(func(r *BackfillReport) { r.Failed += len(batch) })
		return
	}

	written, failed := 0, 0
	for i, d := range batch {
		_, err := b.store.Upsert(ctx, b.model, search.NewEmbedding(d.RecipeID(), b.model.Name(), d.Text(), vectors[i]))
		if err != nil {
			b.logger.WarnContext(ctx, "store embedding failed",
				slog.String("recipe_id", d.RecipeID()),
				slog.Any("error", err),
			)
			failed++
			continue
		}
		written++
	}
	t.add(func(r *BackfillReport) {
		if refresh {
			r.Refreshed += written
		} else {
			r.Embedded += written
		}
		r.Failed += failed
	})
}
