package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., EMBEDDING_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir holds the SQLite database, lexical index and local models.
	// Env: DATA_DIR
	// Default: ~/.pantry
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/pantry.db
	DBURL string `envconfig:"DB_URL"`

	// Postgres pool limits. SQLite always uses one connection.
	// Env: DB_MAX_OPEN_CONNS (default: 10)
	DBMaxOpenConns int `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`

	// Env: DB_MAX_IDLE_CONNS (default: 5)
	DBMaxIdleConns int `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`

	// Env: DB_CONN_MAX_LIFETIME (default: 30m)
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`

	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is pretty or json.
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// CORSAllowedOrigins is a comma-separated list of origins.
	// Env: CORS_ALLOWED_ORIGINS
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS"`

	Embedding EmbeddingEnv `envconfig:"EMBEDDING"`

	Search SearchEnv `envconfig:"SEARCH"`

	// LexicalBackend is sql or bleve.
	// Env: LEXICAL_BACKEND (default: sql)
	LexicalBackend string `envconfig:"LEXICAL_BACKEND" default:"sql"`

	Backfill BackfillEnv `envconfig:"BACKFILL"`
}

// EmbeddingEnv holds environment configuration for the embedding provider.
type EmbeddingEnv struct {
	// Provider is openai, ollama or local.
	// Env: EMBEDDING_PROVIDER (default: local)
	Provider string `envconfig:"PROVIDER" default:"local"`

	Endpoint EndpointEnv `envconfig:"ENDPOINT"`

	// Env: EMBEDDING_MODEL
	Model string `envconfig:"MODEL"`

	// Env: EMBEDDING_DIMENSION
	Dimension int `envconfig:"DIMENSION"`

	// Timeout is the request timeout in seconds.
	// Env: EMBEDDING_TIMEOUT (default: 30)
	Timeout float64 `envconfig:"TIMEOUT" default:"30"`

	// Env: EMBEDDING_MAX_RETRIES (default: 2)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"2"`

	// Env: EMBEDDING_BATCH_SIZE (default: 32)
	BatchSize int `envconfig:"BATCH_SIZE" default:"32"`

	// Env: EMBEDDING_MAX_CHARS (default: 8000)
	MaxChars int `envconfig:"MAX_CHARS" default:"8000"`

	// CacheDir caches provider responses on disk when set.
	// Env: EMBEDDING_CACHE_DIR
	CacheDir string `envconfig:"CACHE_DIR"`
}

// EndpointEnv holds the remote endpoint location and credentials.
type EndpointEnv struct {
	// Env: EMBEDDING_ENDPOINT_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Env: EMBEDDING_ENDPOINT_API_KEY
	APIKey string `envconfig:"API_KEY"`
}

// SearchEnv holds environment configuration for ranking.
type SearchEnv struct {
	// Env: SEARCH_SEMANTIC_WEIGHT (default: 0.7)
	SemanticWeight float64 `envconfig:"SEMANTIC_WEIGHT" default:"0.7"`

	// Env: SEARCH_LEXICAL_WEIGHT (default: 0.3)
	LexicalWeight float64 `envconfig:"LEXICAL_WEIGHT" default:"0.3"`

	// Env: SEARCH_DUAL_BOOST (default: 0)
	DualBoost float64 `envconfig:"DUAL_BOOST" default:"0"`

	// Env: SEARCH_MIN_SIMILARITY (default: 0.5)
	MinSimilarity float64 `envconfig:"MIN_SIMILARITY" default:"0.5"`
}

// BackfillEnv holds environment configuration for backfill.
type BackfillEnv struct {
	// Env: BACKFILL_WORKERS (default: 4)
	Workers int `envconfig:"WORKERS" default:"4"`

	// Env: BACKFILL_PAGE_SIZE (default: 100)
	PageSize int `envconfig:"PAGE_SIZE" default:"100"`

	// Env: BACKFILL_ON_START (default: false)
	OnStart bool `envconfig:"ON_START" default:"false"`
}

// LoadFromEnv loads configuration from environment variables without a prefix.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "PANTRY" would require PANTRY_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Validate rejects values the application cannot start with.
func (e EnvConfig) Validate() error {
	switch EmbeddingProvider(strings.ToLower(e.Embedding.Provider)) {
	case ProviderOpenAI, ProviderOllama, ProviderLocal:
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER: unknown provider %q", e.Embedding.Provider)
	}
	switch LexicalBackend(strings.ToLower(e.LexicalBackend)) {
	case LexicalSQL, LexicalBleve:
	default:
		return fmt.Errorf("LEXICAL_BACKEND: unknown backend %q", e.LexicalBackend)
	}
	if e.DBMaxOpenConns < 0 || e.DBMaxIdleConns < 0 || e.DBConnMaxLifetime < 0 {
		return fmt.Errorf("DB_*: pool limits must not be negative")
	}
	if e.Embedding.Dimension < 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION: must not be negative, got %d", e.Embedding.Dimension)
	}
	if e.Search.SemanticWeight < 0 || e.Search.LexicalWeight < 0 {
		return fmt.Errorf("SEARCH_*_WEIGHT: weights must not be negative")
	}
	if e.Search.SemanticWeight == 0 && e.Search.LexicalWeight == 0 {
		return fmt.Errorf("SEARCH_*_WEIGHT: weights must not both be zero")
	}
	if e.Search.MinSimilarity < -1 || e.Search.MinSimilarity > 1 {
		return fmt.Errorf("SEARCH_MIN_SIMILARITY: must be within [-1, 1], got %v", e.Search.MinSimilarity)
	}
	return nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = cfg.Apply(WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = cfg.Apply(WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = cfg.Apply(WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = cfg.Apply(WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		cfg = cfg.Apply(WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = cfg.Apply(WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	if e.CORSAllowedOrigins != "" {
		cfg = cfg.Apply(WithCORSOrigins(ParseList(e.CORSAllowedOrigins)))
	}

	cfg = cfg.Apply(
		WithDBPool(NewDBPool().WithLimits(e.DBMaxOpenConns, e.DBMaxIdleConns, e.DBConnMaxLifetime)),
		WithEmbedding(e.Embedding.ToEmbedding()),
		WithSearch(NewSearch().
			WithWeights(e.Search.SemanticWeight, e.Search.LexicalWeight).
			WithDualBoost(e.Search.DualBoost).
			WithMinSimilarity(e.Search.MinSimilarity).
			WithLexical(LexicalBackend(strings.ToLower(e.LexicalBackend)))),
		WithBackfill(NewBackfill().
			WithWorkers(e.Backfill.Workers).
			WithPageSize(e.Backfill.PageSize).
			WithOnStart(e.Backfill.OnStart)),
	)
	return cfg
}

// ToEmbedding converts EmbeddingEnv to Embedding.
func (e EmbeddingEnv) ToEmbedding() Embedding {
	return NewEmbeddingWithOptions(
		WithProvider(EmbeddingProvider(strings.ToLower(e.Provider))),
		WithBaseURL(e.Endpoint.BaseURL),
		WithAPIKey(e.Endpoint.APIKey),
		WithModel(e.Model),
		WithDimension(e.Dimension),
		WithTimeout(time.Duration(e.Timeout*float64(time.Second))),
		WithMaxRetries(e.MaxRetries),
		WithBatchSize(e.BatchSize),
		WithMaxChars(e.MaxChars),
		WithCacheDir(e.CacheDir),
	)
}

func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
