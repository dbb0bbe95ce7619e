package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/helixml/pantry/internal/mcp"
)

func stdioCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants search recipes through the semantic_search,
hybrid_search and find_similar tools. Logs go to stderr.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStdio(*envFile)
		},
	}
}

func runStdio(envFile string) error {
	client, _, err := openClient(envFile, nil)
	if err != nil {
		return err
	}
	defer closeClient(client)

	logger := client.Logger()
	logger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("model", client.Model().String()),
	)

	return mcp.NewServer(client.Search, client.Similar, version, logger).ServeStdio()
}
