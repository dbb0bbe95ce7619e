package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helixml/pantry"
	"github.com/helixml/pantry/infrastructure/provider"
	"github.com/helixml/pantry/internal/config"
	"github.com/helixml/pantry/internal/log"
)

// clientOptions returns the pantry.Option slice derived from AppConfig.
func clientOptions(cfg config.AppConfig, logger *slog.Logger) []pantry.Option {
	pool := cfg.DBPool()
	opts := []pantry.Option{
		storageOption(cfg),
		pantry.WithConnectionPool(pool.MaxOpen(), pool.MaxIdle(), pool.MaxLifetime()),
		pantry.WithLogger(logger),
	}
	opts = append(opts, embeddingOptions(cfg)...)

	s := cfg.Search()
	opts = append(opts,
		pantry.WithFusionWeights(s.SemanticWeight(), s.LexicalWeight()),
		pantry.WithDualBoost(s.DualBoost()),
		pantry.WithMinSimilarity(s.MinSimilarity()),
		pantry.WithLexical(s.Lexical(), cfg.LexicalIndexDir()),
	)

	b := cfg.Backfill()
	opts = append(opts,
		pantry.WithBackfillWorkers(b.Workers()),
		pantry.WithBackfillPageSize(b.PageSize()),
	)
	return opts
}

// storageOption returns the option for the configured database backend.
func storageOption(cfg config.AppConfig) pantry.Option {
	dbURL := cfg.DBURL()
	if dbURL != "" && !isSQLite(dbURL) {
		return pantry.WithPostgres(dbURL)
	}

	dbPath := strings.TrimPrefix(dbURL, "sqlite:///")
	if dbPath == dbURL {
		dbPath = strings.TrimPrefix(dbURL, "sqlite:")
	}
	return pantry.WithSQLite(dbPath)
}

func embeddingOptions(cfg config.AppConfig) []pantry.Option {
	e := cfg.Embedding()

	var opts []pantry.Option
	switch e.Provider() {
	case config.ProviderOpenAI:
		opts = append(opts, pantry.WithOpenAI(provider.OpenAIConfig{
			APIKey:     e.APIKey(),
			BaseURL:    e.BaseURL(),
			Model:      e.Model(),
			Dimensions: e.Dimension(),
			Timeout:    e.Timeout(),
		}))
	case config.ProviderOllama:
		opts = append(opts, pantry.WithOllama(provider.OllamaConfig{
			ServerURL: e.BaseURL(),
			Model:     e.Model(),
			BatchSize: e.BatchSize(),
			Timeout:   e.Timeout(),
		}))
	default:
		opts = append(opts, pantry.WithLocalEmbedder(cfg.ModelDir()))
	}

	if e.Model() != "" || e.Dimension() > 0 {
		opts = append(opts, pantry.WithModel(e.Model(), e.Dimension()))
	}
	if dir := e.CacheDir(); dir != "" {
		opts = append(opts, pantry.WithEmbeddingCache(dir))
	}

	return append(opts,
		pantry.WithEmbeddingRetries(e.MaxRetries()),
		pantry.WithEmbeddingTimeout(e.Timeout()),
		pantry.WithEmbeddingBudget(e.MaxChars(), e.BatchSize()),
	)
}

// openClient builds a client from the environment and logs the settings.
func openClient(envFile string, logger *slog.Logger) (*pantry.Client, config.AppConfig, error) {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return nil, config.AppConfig{}, err
	}
	if logger == nil {
		logger = log.NewLogger(cfg)
	}

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(context.Background(), slog.LevelDebug, "configuration loaded", attrs...)

	client, err := pantry.New(clientOptions(cfg, logger)...)
	if err != nil {
		return nil, config.AppConfig{}, fmt.Errorf("create pantry client: %w", err)
	}
	return client, cfg, nil
}

func closeClient(client *pantry.Client) {
	if err := client.Close(); err != nil {
		client.Logger().Error("failed to close pantry client", slog.Any("error", err))
	}
}

// isSQLite checks if the database URL is for SQLite.
func isSQLite(url string) bool {
	return strings.HasPrefix(url, "sqlite:")
}
