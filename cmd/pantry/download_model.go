package main

import (
	"fmt"
	"os"

	"github.com/knights-analytics/hugot"
	"github.com/spf13/cobra"

	"github.com/helixml/pantry/infrastructure/provider"
)

func downloadModelCmd(envFile *string) *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "download-model",
		Short: "Download the local embedding model",
		Long: `Download ` + provider.DefaultLocalRepo + ` from Hugging Face into the model
directory (default: {DATA_DIR}/models), for EMBEDDING_PROVIDER=local.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dest == "" {
				cfg, err := loadConfig(*envFile)
				if err != nil {
					return err
				}
				dest = cfg.ModelDir()
			}

			if provider.NewHugot(dest).Available() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "model already present in %s\n", dest)
				return nil
			}
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("create model directory: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "downloading %s to %s...\n", provider.DefaultLocalRepo, dest)
			opts := hugot.NewDownloadOptions()
			opts.OnnxFilePath = "onnx/model.onnx"
			path, err := hugot.DownloadModel(provider.DefaultLocalRepo, dest, opts)
			if err != nil {
				return fmt.Errorf("download model: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "model ready at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dest, "dest", "", "Target directory (default: {DATA_DIR}/models)")

	return cmd
}
