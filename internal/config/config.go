// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 8080
	DefaultLogLevel          = "INFO"
	DefaultEmbeddingTimeout  = 30 * time.Second
	DefaultEmbeddingRetries  = 2
	DefaultEmbeddingBatch    = 32
	DefaultEmbeddingMaxChars = 8000
	DefaultSemanticWeight    = 0.7
	DefaultLexicalWeight     = 0.3
	DefaultMinSimilarity     = 0.5
	DefaultBackfillWorkers   = 4
	DefaultBackfillPageSize  = 100
	DefaultDBMaxOpenConns    = 10
	DefaultDBMaxIdleConns    = 5
	DefaultDBConnMaxLifetime = 30 * time.Minute
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// EmbeddingProvider selects the embedding backend.
type EmbeddingProvider string

// EmbeddingProvider values.
const (
	ProviderOpenAI EmbeddingProvider = "openai"
	ProviderOllama EmbeddingProvider = "ollama"
	ProviderLocal  EmbeddingProvider = "local"
)

// LexicalBackend selects the lexical search implementation.
type LexicalBackend string

// LexicalBackend values.
const (
	LexicalSQL   LexicalBackend = "sql"
	LexicalBleve LexicalBackend = "bleve"
)

// Embedding configures the embedding provider.
type Embedding struct {
	provider   EmbeddingProvider
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	timeout    time.Duration
	maxRetries int
	batchSize  int
	maxChars   int
	cacheDir   string
}

// NewEmbedding creates an Embedding config with defaults. The local
// provider needs no credentials, so it is the default.
func NewEmbedding() Embedding {
	return Embedding{
		provider:   ProviderLocal,
		timeout:    DefaultEmbeddingTimeout,
		maxRetries: DefaultEmbeddingRetries,
		batchSize:  DefaultEmbeddingBatch,
		maxChars:   DefaultEmbeddingMaxChars,
	}
}

// Provider returns the embedding backend.
func (e Embedding) Provider() EmbeddingProvider { return e.provider }

// BaseURL returns the provider base URL.
func (e Embedding) BaseURL() string { return e.baseURL }

// APIKey returns the API key.
func (e Embedding) APIKey() string { return e.apiKey }

// Model returns the model name, empty for the provider default.
func (e Embedding) Model() string { return e.model }

// Dimension returns the vector dimension, zero for the provider default.
func (e Embedding) Dimension() int { return e.dimension }

// Timeout returns the per-request timeout.
func (e Embedding) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the retry count for transient failures.
func (e Embedding) MaxRetries() int { return e.maxRetries }

// BatchSize returns the maximum texts per provider call.
func (e Embedding) BatchSize() int { return e.batchSize }

// MaxChars returns the per-text character budget.
func (e Embedding) MaxChars() int { return e.maxChars }

// CacheDir returns the on-disk response cache directory, empty when disabled.
func (e Embedding) CacheDir() string { return e.cacheDir }

// EmbeddingOption is a functional option for Embedding.
type EmbeddingOption func(*Embedding)

// WithProvider sets the embedding backend.
func WithProvider(p EmbeddingProvider) EmbeddingOption {
	return func(e *Embedding) { e.provider = p }
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EmbeddingOption {
	return func(e *Embedding) { e.baseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EmbeddingOption {
	return func(e *Embedding) { e.apiKey = key }
}

// WithModel sets the model name.
func WithModel(model string) EmbeddingOption {
	return func(e *Embedding) { e.model = model }
}

// WithDimension sets the vector dimension.
func WithDimension(n int) EmbeddingOption {
	return func(e *Embedding) { e.dimension = n }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EmbeddingOption {
	return func(e *Embedding) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxRetries sets the retry count.
func WithMaxRetries(n int) EmbeddingOption {
	return func(e *Embedding) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithBatchSize sets the maximum texts per call.
func WithBatchSize(n int) EmbeddingOption {
	return func(e *Embedding) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithMaxChars sets the per-text character budget.
func WithMaxChars(n int) EmbeddingOption {
	return func(e *Embedding) {
		if n > 0 {
			e.maxChars = n
		}
	}
}

// WithCacheDir enables the response cache in dir.
func WithCacheDir(dir string) EmbeddingOption {
	return func(e *Embedding) { e.cacheDir = dir }
}

// NewEmbeddingWithOptions creates an Embedding config with options.
func NewEmbeddingWithOptions(opts ...EmbeddingOption) Embedding {
	e := NewEmbedding()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Search configures ranking.
type Search struct {
	semanticWeight float64
	lexicalWeight  float64
	dualBoost      float64
	minSimilarity  float64
	lexical        LexicalBackend
}

// NewSearch creates a Search config with defaults.
func NewSearch() Search {
	return Search{
		semanticWeight: DefaultSemanticWeight,
		lexicalWeight:  DefaultLexicalWeight,
		minSimilarity:  DefaultMinSimilarity,
		lexical:        LexicalSQL,
	}
}

// SemanticWeight returns the hybrid semantic weight.
func (s Search) SemanticWeight() float64 { return s.semanticWeight }

// LexicalWeight returns the hybrid lexical weight.
func (s Search) LexicalWeight() float64 { return s.lexicalWeight }

// DualBoost returns the additive boost for recipes found by both lists.
func (s Search) DualBoost() float64 { return s.dualBoost }

// MinSimilarity returns the default similarity floor.
func (s Search) MinSimilarity() float64 { return s.minSimilarity }

// Lexical returns the lexical backend.
func (s Search) Lexical() LexicalBackend { return s.lexical }

// WithWeights returns a copy with the given fusion weights.
func (s Search) WithWeights(semantic, lexical float64) Search {
	s.semanticWeight = semantic
	s.lexicalWeight = lexical
	return s
}

// WithDualBoost returns a copy with the given dual boost.
func (s Search) WithDualBoost(boost float64) Search {
	s.dualBoost = boost
	return s
}

// WithMinSimilarity returns a copy with the given floor.
func (s Search) WithMinSimilarity(f float64) Search {
	s.minSimilarity = f
	return s
}

// WithLexical returns a copy with the given lexical backend.
func (s Search) WithLexical(b LexicalBackend) Search {
	s.lexical = b
	return s
}

// DBPool holds connection pool limits for Postgres.
type DBPool struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

// NewDBPool creates a DBPool with defaults.
func NewDBPool() DBPool {
	return DBPool{
		maxOpen:     DefaultDBMaxOpenConns,
		maxIdle:     DefaultDBMaxIdleConns,
		maxLifetime: DefaultDBConnMaxLifetime,
	}
}

// MaxOpen returns the maximum number of open connections.
func (p DBPool) MaxOpen() int { return p.maxOpen }

// MaxIdle returns the maximum number of idle connections.
func (p DBPool) MaxIdle() int { return p.maxIdle }

// MaxLifetime returns how long a connection may be reused.
func (p DBPool) MaxLifetime() time.Duration { return p.maxLifetime }

// WithLimits returns a copy with the given limits. Non-positive values keep
// the current setting. Idle connections are capped at the open limit.
func (p DBPool) WithLimits(maxOpen, maxIdle int, maxLifetime time.Duration) DBPool {
	if maxOpen > 0 {
		p.maxOpen = maxOpen
	}
	if maxIdle > 0 {
		p.maxIdle = maxIdle
	}
	if maxLifetime > 0 {
		p.maxLifetime = maxLifetime
	}
	p.maxIdle = min(p.maxIdle, p.maxOpen)
	return p
}

// Backfill configures embedding backfill.
type Backfill struct {
	workers  int
	pageSize int
	onStart  bool
}

// NewBackfill creates a Backfill config with defaults.
func NewBackfill() Backfill {
	return Backfill{workers: DefaultBackfillWorkers, pageSize: DefaultBackfillPageSize}
}

// Workers returns the worker pool size.
func (b Backfill) Workers() int { return b.workers }

// PageSize returns the number of recipes scanned per page.
func (b Backfill) PageSize() int { return b.pageSize }

// OnStart reports whether serve runs a backfill at startup.
func (b Backfill) OnStart() bool { return b.onStart }

// WithWorkers returns a copy with the given worker count.
func (b Backfill) WithWorkers(n int) Backfill {
	if n > 0 {
		b.workers = n
	}
	return b
}

// WithPageSize returns a copy with the given page size.
func (b Backfill) WithPageSize(n int) Backfill {
	if n > 0 {
		b.pageSize = n
	}
	return b
}

// WithOnStart returns a copy with the given startup behaviour.
func (b Backfill) WithOnStart(on bool) Backfill {
	b.onStart = on
	return b
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host        string
	port        int
	dataDir     string
	dbURL       string
	dbPool      DBPool
	logLevel    string
	logFormat   LogFormat
	corsOrigins []string
	embedding   Embedding
	search      Search
	backfill    Backfill
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pantry"
	}
	return filepath.Join(home, ".pantry")
}

// DefaultLogger returns the default slog logger for library consumers.
func DefaultLogger() *slog.Logger {
	return slog.Default()
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:        DefaultHost,
		port:        DefaultPort,
		dataDir:     dataDir,
		dbURL:       "sqlite:///" + filepath.Join(dataDir, "pantry.db"),
		dbPool:      NewDBPool(),
		logLevel:    DefaultLogLevel,
		logFormat:   LogFormatPretty,
		corsOrigins: []string{},
		embedding:   NewEmbedding(),
		search:      NewSearch(),
		backfill:    NewBackfill(),
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// DBPool returns the Postgres connection pool limits.
func (c AppConfig) DBPool() DBPool { return c.dbPool }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// CORSOrigins returns the allowed CORS origins.
func (c AppConfig) CORSOrigins() []string {
	return append([]string(nil), c.corsOrigins...)
}

// Embedding returns the embedding config.
func (c AppConfig) Embedding() Embedding { return c.embedding }

// Search returns the search config.
func (c AppConfig) Search() Search { return c.search }

// Backfill returns the backfill config.
func (c AppConfig) Backfill() Backfill { return c.backfill }

// LexicalIndexDir returns where the bleve index lives.
func (c AppConfig) LexicalIndexDir() string {
	return filepath.Join(c.dataDir, "lexical.bleve")
}

// ModelDir returns where local embedding models are stored.
func (c AppConfig) ModelDir() string {
	return filepath.Join(c.dataDir, "models")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		// Keep the default DB beside the data dir
		if c.dbURL == "" || strings.HasSuffix(c.dbURL, "pantry.db") {
			c.dbURL = "sqlite:///" + filepath.Join(dir, "pantry.db")
		}
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithDBPool sets the Postgres connection pool limits.
func WithDBPool(p DBPool) AppConfigOption {
	return func(c *AppConfig) { c.dbPool = p }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) { c.corsOrigins = append([]string(nil), origins...) }
}

// WithEmbedding sets the embedding config.
func WithEmbedding(e Embedding) AppConfigOption {
	return func(c *AppConfig) { c.embedding = e }
}

// WithSearch sets the search config.
func WithSearch(s Search) AppConfigOption {
	return func(c *AppConfig) { c.search = s }
}

// WithBackfill sets the backfill config.
func WithBackfill(b Backfill) AppConfigOption {
	return func(c *AppConfig) { c.backfill = b }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	return NewAppConfig().Apply(opts...)
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Credentials are never included.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.Int("db_max_open_conns", c.dbPool.maxOpen),
		slog.String("embedding_provider", string(c.embedding.provider)),
		slog.String("embedding_model", c.embedding.model),
		slog.Int("embedding_dimension", c.embedding.dimension),
		slog.Bool("embedding_api_key_set", c.embedding.apiKey != ""),
		slog.String("lexical_backend", string(c.search.lexical)),
		slog.Float64("semantic_weight", c.search.semanticWeight),
		slog.Float64("lexical_weight", c.search.lexicalWeight),
		slog.Float64("min_similarity", c.search.minSimilarity),
		slog.Int("backfill_workers", c.backfill.workers),
		slog.Bool("backfill_on_start", c.backfill.onStart),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if strings.HasPrefix(c.dbURL, "sqlite:") {
		return c.dbURL
	}
	return "postgres://***@***"
}

// ParseList parses a comma-separated list, dropping blanks.
func ParseList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
