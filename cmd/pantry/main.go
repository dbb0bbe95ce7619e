// Package main is the entry point for the pantry CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixml/pantry/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "pantry",
		Short: "Semantic recipe search",
		Long: `Pantry ranks recipes by meaning. It keeps one embedding vector per recipe
and answers natural-language searches, hybrid text searches and
"more like this" lookups over HTTP, MCP and the command line.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	cmd.AddCommand(serveCmd(&envFile))
	cmd.AddCommand(stdioCmd(&envFile))
	cmd.AddCommand(backfillCmd(&envFile))
	cmd.AddCommand(searchCmd(&envFile))
	cmd.AddCommand(similarCmd(&envFile))
	cmd.AddCommand(seedCmd(&envFile))
	cmd.AddCommand(downloadModelCmd(&envFile))
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return config.AppConfig{}, err
	}
	return cfg, nil
}
