package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixml/pantry/application/service"
	"github.com/helixml/pantry/infrastructure/tracking"
)

func backfillCmd(envFile *string) *cobra.Command {
	var (
		refresh bool
		purge   bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Embed recipes that have no vector",
		Long: `Embed every recipe that has no vector under the active model.

--refresh also re-embeds recipes whose text changed since their vector was
made. --purge deletes vectors left behind by other models, after switching
EMBEDDING_MODEL for instance.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := openClient(*envFile, nil)
			if err != nil {
				return err
			}
			defer closeClient(client)

			ctx := cmd.Context()
			logger := client.Logger()

			if purge {
				n, err := client.Backfill.Purge(ctx)
				if err != nil {
					return fmt.Errorf("purge: %w", err)
				}
				logger.Info("purged vectors of other models", slog.Int64("deleted", n))
			}

			opts := []service.RunOption{
				service.WithProgress(tracking.NewCooldown(tracking.Logging(logger, "backfill progress"), 2*time.Second).Report),
			}
			if refresh {
				opts = append(opts, service.WithRefresh())
			}

			report, err := client.Backfill.Run(ctx, opts...)
			if err != nil {
				return fmt.Errorf("backfill: %w", err)
			}
			tracking.LogReport(logger, "backfill finished", report)

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, embedded %d, refreshed %d, skipped %d, failed %d\n",
				report.Scanned, report.Embedded, report.Refreshed, report.Skipped, report.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-embed recipes whose text changed")
	cmd.Flags().BoolVar(&purge, "purge", false, "Delete vectors of models other than the active one")

	return cmd
}
