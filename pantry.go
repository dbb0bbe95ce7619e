// Package pantry provides semantic recipe search and similarity.
//
// Pantry keeps one embedding vector per recipe under a single active model
// and ranks recipes by cosine similarity to a query, optionally fused with a
// lexical text match. Recipes themselves are owned elsewhere; pantry only
// reads them.
//
// Basic usage:
//
//	client, err := pantry.New(
//	    pantry.WithSQLite(".pantry/pantry.db"),
//	    pantry.WithOpenAI(provider.OpenAIConfig{APIKey: os.Getenv("OPENAI_API_KEY")}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Embed recipes that have no vector yet
//	report, err := client.Backfill.Run(ctx)
//
//	// Rank recipes against a query
//	results, err := client.Search.Semantic(ctx, "spicy noodle soup", search.NewFilter(),
//	    search.WithLimit(10),
//	)
//
//	// Recipes like this one
//	similar, err := client.Similar.Find(ctx, recipeID)
package pantry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/helixml/pantry/application/service"
	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/infrastructure/lexical"
	"github.com/helixml/pantry/infrastructure/persistence"
	"github.com/helixml/pantry/infrastructure/provider"
	"github.com/helixml/pantry/internal/config"
	"github.com/helixml/pantry/internal/database"
)

// Client is the main entry point for the pantry library.
//
// Access operations via struct fields:
//
//	client.Search.Hybrid(ctx, "quick weeknight curry", filter)
//	client.Similar.Find(ctx, recipeID)
//	client.Backfill.Run(ctx, service.WithRefresh())
type Client struct {
	Search   *service.Search
	Similar  *service.Similar
	Backfill *service.Backfill
	Recipes  persistence.RecipeStore

	db      database.Database
	ownsDB  bool
	store   search.EmbeddingStore
	bleve   *lexical.BleveIndex
	backend config.LexicalBackend
	model   search.Model
	closers []io.Closer
	logger  *slog.Logger
	closed  atomic.Bool
	mu      sync.Mutex
}

// Status summarises the engine's state.
type Status struct {
	Model      search.Model
	Embeddings int64
	Recipes    int64
	Lexical    config.LexicalBackend
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.database == databaseUnset {
		return nil, ErrNoDatabase
	}

	logger := cfg.logger
	if logger == nil {
		logger = config.DefaultLogger()
	}

	fusion, err := search.NewFusionWithWeights(cfg.semantic, cfg.lexicalW)
	if err != nil {
		return nil, err
	}
	fusion = fusion.WithDualBoost(cfg.dualBoost)

	budget, err := search.NewTokenBudget(cfg.maxChars)
	if err != nil {
		return nil, err
	}
	budget = budget.WithMaxBatchSize(cfg.batchSize)

	ctx := context.Background()
	closers := cfg.closers
	release := func(err error) (*Client, error) {
		for _, c := range closers {
			err = errors.Join(err, c.Close())
		}
		return nil, err
	}

	raw, defaultName, err := buildEmbedder(cfg, logger)
	if err != nil {
		return release(err)
	}
	if c, ok := raw.(io.Closer); ok {
		closers = append(closers, c)
	}
	embedder := provider.NewRetrying(raw,
		provider.WithMaxRetries(cfg.retries),
		provider.WithAttemptTimeout(cfg.timeout),
		provider.WithRetryLogger(logger),
	)

	model, err := resolveModel(ctx, cfg, defaultName, embedder)
	if err != nil {
		return release(err)
	}

	db, ownsDB, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return release(err)
	}
	fail := func(err error) (*Client, error) {
		if ownsDB {
			err = errors.Join(err, db.Close())
		}
		return release(err)
	}

	if err := persistence.AutoMigrate(db); err != nil {
		return fail(fmt.Errorf("auto migrate: %w", err))
	}

	var store search.EmbeddingStore
	if db.IsPostgres() {
		store, err = persistence.NewPgVectorStore(ctx, db, model, logger)
		if err != nil {
			return fail(fmt.Errorf("vector store: %w", err))
		}
	} else {
		store = persistence.NewSQLiteVectorStore(db, logger)
	}

	recipes := persistence.NewRecipeStore(db)

	var lex search.LexicalStore
	var bleve *lexical.BleveIndex
	switch cfg.lexical {
	case config.LexicalBleve:
		bleve, err = lexical.NewBleveIndex(cfg.lexDir, logger)
		if err != nil {
			return fail(fmt.Errorf("lexical index: %w", err))
		}
		if _, err := bleve.Rebuild(ctx, recipes); err != nil {
			_ = bleve.Close()
			return fail(fmt.Errorf("rebuild lexical index: %w", err))
		}
		closers = append(closers, bleve)
		lex = bleve
	default:
		lex = persistence.NewSQLLexicalStore(db)
	}

	client := &Client{
		Recipes: recipes,
		db:      db,
		ownsDB:  ownsDB,
		store:   store,
		bleve:   bleve,
		backend: cfg.lexical,
		model:   model,
		closers: closers,
		logger:  logger,
	}

	client.Backfill = service.NewBackfill(recipes, store, embedder, model, logger,
		service.WithBackfillWorkers(cfg.workers),
		service.WithBackfillPageSize(cfg.pageSize),
		service.WithTokenBudget(budget),
	)
	client.Search = service.NewSearch(embedder, store, recipes, model, logger,
		service.WithFusion(fusion),
		service.WithDefaultMinSimilarity(cfg.floor),
		service.WithLexicalStore(lex),
		service.WithClosedFlag(&client.closed),
	)
	client.Similar = service.NewSimilar(recipes, client.Backfill, store, logger,
		service.WithSimilarMinSimilarity(cfg.floor),
		service.WithSimilarClosedFlag(&client.closed),
	)

	logger.Info("pantry client ready",
		slog.String("model", model.String()),
		slog.String("database", db.Dialect()),
		slog.String("lexical", string(cfg.lexical)),
	)
	return client, nil
}

// Model returns the active embedding model.
func (c *Client) Model() search.Model {
	return c.model
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Status reports the active model and how many recipes have vectors.
func (c *Client) Status(ctx context.Context) (Status, error) {
	if c.closed.Load() {
		return Status{}, ErrClientClosed
	}
	embeddings, err := c.store.Count(ctx, c.model)
	if err != nil {
		return Status{}, fmt.Errorf("count embeddings: %w", err)
	}
	recipes, err := c.Recipes.Count(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("count recipes: %w", err)
	}
	return Status{Model: c.model, Embeddings: embeddings, Recipes: recipes, Lexical: c.backend}, nil
}

// Seed writes recipes to the recipe table and the lexical index. It stands
// in for the recipe service during development and tests.
func (c *Client) Seed(ctx context.Context, recipes ...recipe.Recipe) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.Recipes.SaveAll(ctx, recipes); err != nil {
		return err
	}
	if c.bleve != nil {
		if err := c.bleve.Index(ctx, recipes...); err != nil {
			return fmt.Errorf("index recipes: %w", err)
		}
	}
	return nil
}

// Close releases the client's resources. In-flight operations are not
// waited for; new ones fail with ErrClientClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	if c.ownsDB {
		if err := c.db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}

	c.logger.Info("pantry client closed")
	return nil
}

func openDatabase(ctx context.Context, cfg *clientConfig, logger *slog.Logger) (database.Database, bool, error) {
	var url string
	switch cfg.database {
	case databaseProvided:
		return cfg.db, false, nil
	case databaseSQLite:
		url = "sqlite:///" + cfg.dbPath
	case databasePostgres:
		url = cfg.dbDSN
	default:
		return database.Database{}, false, ErrNoDatabase
	}
	db, err := database.NewDatabase(ctx, url,
		database.WithLogger(logger),
		database.WithPool(cfg.pool.MaxOpen(), cfg.pool.MaxIdle(), cfg.pool.MaxLifetime()),
	)
	if err != nil {
		return database.Database{}, false, fmt.Errorf("open database: %w", err)
	}
	return db, true, nil
}

// buildEmbedder returns the configured provider and its default model name.
func buildEmbedder(cfg *clientConfig, logger *slog.Logger) (search.Embedder, string, error) {
	var transport http.RoundTripper
	if cfg.cacheDir != "" {
		transport = provider.NewEmbeddingCache(cfg.cacheDir, nil, logger)
	}

	switch cfg.embedder {
	case embedderCustom:
		if cfg.custom == nil || cfg.modelName == "" {
			return nil, "", ErrNoModel
		}
		return cfg.custom, cfg.modelName, nil
	case embedderOpenAI:
		oc := cfg.openai
		if oc.Transport == nil {
			oc.Transport = transport
		}
		if oc.Dimensions == 0 {
			oc.Dimensions = cfg.dimension
		}
		p := provider.NewOpenAI(oc)
		return p, p.Model(), nil
	case embedderOllama:
		oc := cfg.ollama
		if oc.Transport == nil {
			oc.Transport = transport
		}
		p, err := provider.NewOllama(oc)
		if err != nil {
			return nil, "", err
		}
		return p, p.Model(), nil
	default:
		h := provider.NewHugot(cfg.modelDir)
		if !h.Available() {
			return nil, "", fmt.Errorf("no local embedding model found in %s: run 'pantry download-model' or configure a remote provider", cfg.modelDir)
		}
		logger.Info("local embedding provider enabled", slog.String("model_dir", cfg.modelDir))
		return h, provider.DefaultLocalModel, nil
	}
}

// resolveModel builds the active model. An unknown dimension is learned by
// embedding a probe text once.
func resolveModel(ctx context.Context, cfg *clientConfig, defaultName string, embedder search.Embedder) (search.Model, error) {
	name := cfg.modelName
	if name == "" {
		name = defaultName
	}

	dimension := cfg.dimension
	if dimension == 0 && cfg.embedder == embedderLocal {
		dimension = provider.DefaultLocalDimension
	}
	if dimension == 0 {
		vectors, err := embedder.Embed(ctx, []string{"dimension probe"})
		if err != nil {
			return search.Model{}, fmt.Errorf("probe embedding dimension: %w", err)
		}
		if len(vectors) == 0 || len(vectors[0]) == 0 {
			return search.Model{}, errors.New("probe embedding dimension: provider returned no vector")
		}
		dimension = len(vectors[0])
	}

	return search.NewModel(name, dimension)
}
