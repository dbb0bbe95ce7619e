package pantry

import (
	"io"
	"log/slog"
	"time"

	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/infrastructure/provider"
	"github.com/helixml/pantry/internal/config"
	"github.com/helixml/pantry/internal/database"
)

type databaseType int

const (
	databaseUnset databaseType = iota
	databaseSQLite
	databasePostgres
	databaseProvided
)

type embedderType int

const (
	embedderLocal embedderType = iota
	embedderOpenAI
	embedderOllama
	embedderCustom
)

// clientConfig holds configuration for Client construction.
// Defaults come from internal/config.
type clientConfig struct {
	database  databaseType
	dbPath    string
	dbDSN     string
	pool      config.DBPool
	db        database.Database
	embedder  embedderType
	openai    provider.OpenAIConfig
	ollama    provider.OllamaConfig
	modelDir  string
	custom    search.Embedder
	modelName string
	dimension int
	cacheDir  string
	retries   int
	timeout   time.Duration
	maxChars  int
	batchSize int
	semantic  float64
	lexicalW  float64
	dualBoost float64
	floor     float64
	lexical   config.LexicalBackend
	lexDir    string
	workers   int
	pageSize  int
	logger    *slog.Logger
	closers   []io.Closer
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		modelDir:  config.NewAppConfig().ModelDir(),
		pool:      config.NewDBPool(),
		retries:   config.DefaultEmbeddingRetries,
		timeout:   config.DefaultEmbeddingTimeout,
		maxChars:  config.DefaultEmbeddingMaxChars,
		batchSize: config.DefaultEmbeddingBatch,
		semantic:  config.DefaultSemanticWeight,
		lexicalW:  config.DefaultLexicalWeight,
		floor:     config.DefaultMinSimilarity,
		lexical:   config.LexicalSQL,
		workers:   config.DefaultBackfillWorkers,
		pageSize:  config.DefaultBackfillPageSize,
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite stores recipes and vectors in a SQLite file. ":memory:" opens
// a private in-memory database.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.database = databaseSQLite
		c.dbPath = path
	}
}

// WithPostgres stores recipes and vectors in PostgreSQL with the pgvector
// extension.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.database = databasePostgres
		c.dbDSN = dsn
	}
}

// WithConnectionPool sets Postgres pool limits for a database the client
// opens. Non-positive values keep the defaults.
func WithConnectionPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(c *clientConfig) {
		c.pool = c.pool.WithLimits(maxOpen, maxIdle, maxLifetime)
	}
}

// WithDatabase uses an already open database. The client does not close it.
func WithDatabase(db database.Database) Option {
	return func(c *clientConfig) {
		c.database = databaseProvided
		c.db = db
	}
}

// WithOpenAI embeds through an OpenAI-compatible endpoint.
func WithOpenAI(cfg provider.OpenAIConfig) Option {
	return func(c *clientConfig) {
		c.embedder = embedderOpenAI
		c.openai = cfg
	}
}

// WithOllama embeds through an Ollama server.
func WithOllama(cfg provider.OllamaConfig) Option {
	return func(c *clientConfig) {
		c.embedder = embedderOllama
		c.ollama = cfg
	}
}

// WithLocalEmbedder embeds in-process with the model found in modelDir.
// This is the default.
func WithLocalEmbedder(modelDir string) Option {
	return func(c *clientConfig) {
		c.embedder = embedderLocal
		if modelDir != "" {
			c.modelDir = modelDir
		}
	}
}

// WithEmbedder uses a custom embedder. WithModel must also be given.
func WithEmbedder(e search.Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = embedderCustom
		c.custom = e
	}
}

// WithModel sets the active model's name and dimension. Either may be left
// zero to use the provider's own.
func WithModel(name string, dimension int) Option {
	return func(c *clientConfig) {
		c.modelName = name
		c.dimension = dimension
	}
}

// WithEmbeddingCache caches remote provider responses on disk in dir.
func WithEmbeddingCache(dir string) Option {
	return func(c *clientConfig) { c.cacheDir = dir }
}

// WithEmbeddingRetries sets how often a failed provider call is retried.
func WithEmbeddingRetries(n int) Option {
	return func(c *clientConfig) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithEmbeddingTimeout bounds each provider call.
func WithEmbeddingTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithEmbeddingBudget sets the per-text character budget and the maximum
// number of texts per provider call.
func WithEmbeddingBudget(maxChars, batchSize int) Option {
	return func(c *clientConfig) {
		if maxChars > 0 {
			c.maxChars = maxChars
		}
		if batchSize > 0 {
			c.batchSize = batchSize
		}
	}
}

// WithFusionWeights sets the hybrid weights. Invalid weights make New fail.
func WithFusionWeights(semantic, lexical float64) Option {
	return func(c *clientConfig) {
		c.semantic = semantic
		c.lexicalW = lexical
	}
}

// WithDualBoost adds boost to the hybrid score of recipes found by both
// the semantic and lexical lists.
func WithDualBoost(boost float64) Option {
	return func(c *clientConfig) { c.dualBoost = boost }
}

// WithMinSimilarity sets the default similarity floor.
func WithMinSimilarity(f float64) Option {
	return func(c *clientConfig) { c.floor = f }
}

// WithLexical selects the lexical backend. For bleve, dir holds the index;
// an empty dir keeps it in memory.
func WithLexical(backend config.LexicalBackend, dir string) Option {
	return func(c *clientConfig) {
		c.lexical = backend
		c.lexDir = dir
	}
}

// WithBackfillWorkers sets the backfill worker pool size.
func WithBackfillWorkers(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithBackfillPageSize sets how many recipes backfill scans per page.
func WithBackfillPageSize(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithCloser registers a resource closed with the client.
func WithCloser(closer io.Closer) Option {
	return func(c *clientConfig) { c.closers = append(c.closers, closer) }
}
