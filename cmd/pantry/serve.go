package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixml/pantry"
	"github.com/helixml/pantry/infrastructure/api"
	"github.com/helixml/pantry/infrastructure/tracking"
	"github.com/helixml/pantry/internal/config"
	"github.com/helixml/pantry/internal/log"
)

func serveCmd(envFile *string) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server with the REST API under /api/v1 and MCP at /mcp.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATA_DIR                     Data directory (default: ~/.pantry)
  DB_URL                       Database URL (default: sqlite:///{data_dir}/pantry.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  CORS_ALLOWED_ORIGINS         Comma-separated browser origins

  EMBEDDING_PROVIDER           openai, ollama or local (default: local)
  EMBEDDING_ENDPOINT_BASE_URL  Provider base URL
  EMBEDDING_ENDPOINT_API_KEY   Provider API key
  EMBEDDING_MODEL              Model identifier
  EMBEDDING_DIMENSION          Vector length (probed when unset)
  EMBEDDING_TIMEOUT            Per-call timeout in seconds (default: 30)
  EMBEDDING_MAX_RETRIES        Retries after a failed call (default: 2)
  EMBEDDING_CACHE_DIR          Cache provider responses on disk

  SEARCH_SEMANTIC_WEIGHT       Hybrid semantic weight (default: 0.7)
  SEARCH_LEXICAL_WEIGHT        Hybrid lexical weight (default: 0.3)
  SEARCH_MIN_SIMILARITY        Default similarity floor (default: 0.5)
  LEXICAL_BACKEND              sql or bleve (default: sql)

  BACKFILL_ON_START            Embed missing recipes when the server starts`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(ctx context.Context, envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)
	logger := log.NewLogger(cfg)

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(context.Background(), slog.LevelInfo, "starting pantry", attrs...)

	client, err := pantry.New(clientOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("create pantry client: %w", err)
	}
	defer closeClient(client)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Backfill().OnStart() {
		go backfillOnStart(ctx, client, logger)
	}

	apiServer := api.NewAPIServer(client, version, api.WithCORSOrigins(cfg.CORSOrigins()...))

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.ListenAndServe(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}
	return <-errCh
}

func backfillOnStart(ctx context.Context, client *pantry.Client, logger *slog.Logger) {
	report, err := client.Backfill.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("startup backfill failed", slog.Any("error", err))
		return
	}
	tracking.LogReport(logger, "startup backfill finished", report)
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
