package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/search"
)

func TestBackfill_EnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	r, err := k.recipes.Get(ctx, "r-curry")
	require.NoError(t, err)

	first, err := k.backfill.Ensure(ctx, r)
	require.NoError(t, err)
	second, err := k.backfill.Ensure(ctx, r)
	require.NoError(t, err)

	assert.Equal(t, int64(1), k.embedder.calls.Load(), "second call must reuse the stored vector")
	assert.Equal(t, first.Vector(), second.Vector())
	assert.Equal(t, "Thai Curry. Cuisine: Thai", first.SourceText())
	assert.Equal(t, int64(1), k.vectorCount(t))
}

func TestBackfill_ConcurrentEnsureWritesOnce(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedder.delay = 50 * time.Millisecond
	r, err := k.recipes.Get(ctx, "r-curry")
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]search.Embedding, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = k.backfill.Ensure(ctx, r)
		}(i)
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Len(t, results[i].Vector(), k.model.Dimension())
	}
	assert.Equal(t, int64(1), k.embedder.calls.Load())
	assert.Equal(t, int64(1), k.vectorCount(t))
}

func TestBackfill_CancelledCallerDoesNotFailOthers(t *testing.T) {
	k := newKitchen(t)
	_, err := k.backfill.EnsureByID(context.Background(), "r-padthai")
	require.NoError(t, err)
	k.embedder.calls.Store(0)
	k.embedder.delay = 200 * time.Millisecond
	r, err := k.recipes.Get(context.Background(), "r-curry")
	require.NoError(t, err)

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := k.backfill.Ensure(leaderCtx, r)
		leaderErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	type outcome struct {
		e   search.Embedding
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		e, err := k.backfill.Ensure(context.Background(), r)
		follower <- outcome{e, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	require.ErrorIs(t, <-leaderErr, context.Canceled)
	got := <-follower
	require.NoError(t, got.err)
	assert.Len(t, got.e.Vector(), k.model.Dimension())
	assert.Equal(t, int64(1), k.embedder.calls.Load())
	assert.Equal(t, int64(2), k.vectorCount(t))

	similar, err := k.similar.Find(context.Background(), "r-curry", search.WithMinSimilarity(0.4))
	require.NoError(t, err)
	assert.Equal(t, []string{"r-padthai"}, similar.RecipeIDs())
}

func TestBackfill_CancelledSoleCallerStillStores(t *testing.T) {
	k := newKitchen(t)
	k.embedder.delay = 50 * time.Millisecond
	r, err := k.recipes.Get(context.Background(), "r-curry")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = k.backfill.Ensure(ctx, r)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Eventually(t, func() bool {
		n, err := k.store.Count(context.Background(), k.model)
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond, "the started provider call completes and is kept")
}

func TestBackfill_SharedTimeout(t *testing.T) {
	k := newKitchen(t)
	k.embedder.delay = time.Second
	backfill := NewBackfill(k.recipes, k.store, k.embedder, k.model, nil,
		WithSharedTimeout(20*time.Millisecond))
	r, err := k.recipes.Get(context.Background(), "r-curry")
	require.NoError(t, err)

	_, err = backfill.Ensure(context.Background(), r)
	require.ErrorIs(t, err, search.ErrEmbeddingUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, k.vectorCount(t))
}

func TestBackfill_TwoWritersKeepOneRecord(t *testing.T) {
	k := newKitchen(t)
	k.embedder.delay = 100 * time.Millisecond
	store := &countingStore{EmbeddingStore: k.store}
	r, err := k.recipes.Get(context.Background(), "r-curry")
	require.NoError(t, err)

	// Separate instances do not share a singleflight group, so both reach the
	// database and the (recipe_id, model_name) upsert decides the outcome.
	writers := []*Backfill{
		NewBackfill(k.recipes, store, k.embedder, k.model, nil),
		NewBackfill(k.recipes, store, k.embedder, k.model, nil),
	}
	results := make([]search.Embedding, len(writers))
	errs := make([]error, len(writers))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = w.Ensure(context.Background(), r)
		}()
	}
	close(start)
	wg.Wait()

	for i := range writers {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Vector(), results[i].Vector())
	}
	assert.Equal(t, int64(2), k.embedder.calls.Load())
	assert.Equal(t, 2, store.upserts)
	assert.Equal(t, int64(1), k.vectorCount(t))
}

func TestBackfill_EnsureEmptyText(t *testing.T) {
	k := newKitchen(t)

	_, err := k.backfill.Ensure(context.Background(), recipe.New("r-blank", "   "))
	require.ErrorIs(t, err, search.ErrEmptySourceText)
	assert.Zero(t, k.embedder.calls.Load())
}

func TestBackfill_EnsureProviderOutage(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedder.fail.Store(true)

	_, err := k.backfill.EnsureByID(ctx, "r-curry")
	require.ErrorIs(t, err, search.ErrEmbeddingUnavailable)
	require.ErrorIs(t, err, errProviderDown)
	assert.Zero(t, k.vectorCount(t), "nothing is persisted on failure")
}

func TestBackfill_EnsureDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedder.dimension = 3

	_, err := k.backfill.EnsureByID(ctx, "r-curry")
	require.ErrorIs(t, err, search.ErrDimensionMismatch)
	assert.Zero(t, k.vectorCount(t))
}

func TestBackfill_EnsureByIDUnknownRecipe(t *testing.T) {
	k := newKitchen(t)

	_, err := k.backfill.EnsureByID(context.Background(), "nope")
	require.ErrorIs(t, err, recipe.ErrNotFound)
}

func TestBackfill_Run(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	require.NoError(t, k.recipes.SaveAll(ctx, []recipe.Recipe{recipe.New("r-blank", " ")}))

	var progress []BackfillReport
	var mu sync.Mutex
	report, err := k.backfill.Run(ctx, WithProgress(func(r BackfillReport) {
		mu.Lock()
		progress = append(progress, r)
		mu.Unlock()
	}))
	require.NoError(t, err)

	assert.Equal(t, BackfillReport{Scanned: 5, Embedded: 4, Skipped: 1}, report)
	assert.Equal(t, int64(4), k.vectorCount(t))
	assert.NotEmpty(t, progress)

	again, err := k.backfill.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Scanned, "only the blank recipe is still missing")
	assert.Zero(t, again.Embedded)
}

func TestBackfill_RunBatchesProviderCalls(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	budget, err := search.NewTokenBudget(1000)
	require.NoError(t, err)
	b := NewBackfill(k.recipes, k.store, k.embedder, k.model, nil, WithTokenBudget(budget.WithMaxBatchSize(2)))

	report, err := b.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Embedded)
	assert.Equal(t, int64(2), k.embedder.calls.Load())
	assert.Equal(t, int64(4), k.embedder.texts.Load())
}

func TestBackfill_RunCountsFailures(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedder.fail.Store(true)

	report, err := k.backfill.Run(ctx)
	require.NoError(t, err, "failed batches never abort the run")

	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 4, report.Failed)
	assert.Zero(t, report.Embedded)
	assert.Zero(t, k.vectorCount(t))
}

func TestBackfill_Refresh(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedAll(t)

	changed := recipe.New("r-curry", "Thai Curry",
		recipe.WithOwner("chef"),
		recipe.WithVisibility(recipe.VisibilityPublic),
		recipe.WithCuisine("Thai"),
		recipe.WithDescription("Finished with chocolate"),
	)
	require.NoError(t, k.recipes.SaveAll(ctx, []recipe.Recipe{changed}))

	e, refreshed, err := k.backfill.Refresh(ctx, changed)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, []float32{1, 1, 0, 1, 0}, e.Vector())
	assert.Equal(t, int64(4), k.vectorCount(t), "refresh overwrites in place")

	_, refreshed, err = k.backfill.Refresh(ctx, changed)
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, int64(1), k.embedder.calls.Load())
}

func TestBackfill_RunWithRefresh(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedAll(t)

	require.NoError(t, k.recipes.SaveAll(ctx, []recipe.Recipe{
		recipe.New("r-cake", "Chocolate Cake", recipe.WithOwner("chef"),
			recipe.WithVisibility(recipe.VisibilityPublic), recipe.WithCuisine("Austrian")),
	}))

	report, err := k.backfill.Run(ctx, WithRefresh())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Refreshed)
	assert.Zero(t, report.Embedded)

	e, err := k.store.Get(ctx, k.model, "r-cake")
	require.NoError(t, err)
	assert.Equal(t, "Chocolate Cake. Cuisine: Austrian", e.SourceText())
}

func TestBackfill_Purge(t *testing.T) {
	ctx := context.Background()
	k := newKitchen(t)
	k.embedAll(t)

	old, err := search.NewModel("old", 2)
	require.NoError(t, err)
	_, err = k.store.Upsert(ctx, old, search.NewEmbedding("r-curry", "old", "Thai Curry", []float32{1, 0}))
	require.NoError(t, err)

	n, err := k.backfill.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(4), k.vectorCount(t))
}
