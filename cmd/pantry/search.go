package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/helixml/pantry/domain/search"
)

type rankFlags struct {
	limit          int
	minSimilarity  float64
	viewer         string
	includePrivate bool
	asJSON         bool
}

func (f *rankFlags) register(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().IntVar(&f.limit, "limit", defaultLimit, "Maximum number of results")
	cmd.Flags().Float64Var(&f.minSimilarity, "min-similarity", 0, "Minimum cosine similarity (default from SEARCH_MIN_SIMILARITY)")
	cmd.Flags().StringVar(&f.viewer, "viewer", "", "User ID to search as")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print results as JSON")
}

func (f *rankFlags) options(cmd *cobra.Command) []search.Option {
	opts := []search.Option{
		search.WithLimit(f.limit),
		search.WithViewer(f.viewer),
		search.WithIncludePrivate(f.includePrivate),
	}
	if cmd.Flags().Changed("min-similarity") {
		opts = append(opts, search.WithMinSimilarity(f.minSimilarity))
	}
	return opts
}

func searchCmd(envFile *string) *cobra.Command {
	var (
		flags      rankFlags
		hybrid     bool
		cuisine    string
		difficulty string
		tags       []string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search recipes by meaning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := openClient(*envFile, nil)
			if err != nil {
				return err
			}
			defer closeClient(client)

			filter := search.NewFilter(
				search.WithCuisine(cuisine),
				search.WithDifficulty(difficulty),
				search.WithTags(tags...),
			)
			query := strings.Join(args, " ")

			run := client.Search.Semantic
			if hybrid {
				run = client.Search.Hybrid
			}
			results, err := run(cmd.Context(), query, filter, flags.options(cmd)...)
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), results, flags.asJSON)
		},
	}

	flags.register(cmd, search.DefaultLimit)
	cmd.Flags().BoolVar(&flags.includePrivate, "include-private", false, "Include the viewer's private recipes")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "Combine semantic ranking with text matching")
	cmd.Flags().StringVar(&cuisine, "cuisine", "", "Only recipes of this cuisine")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Only recipes of this difficulty")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Only recipes with this tag (repeatable)")

	return cmd
}

func similarCmd(envFile *string) *cobra.Command {
	var flags rankFlags

	cmd := &cobra.Command{
		Use:   "similar <recipe-id>",
		Short: "List recipes similar to a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := openClient(*envFile, nil)
			if err != nil {
				return err
			}
			defer closeClient(client)

			flags.includePrivate = true
			results, err := client.Similar.Find(cmd.Context(), args[0], flags.options(cmd)...)
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), results, flags.asJSON)
		},
	}

	flags.register(cmd, search.DefaultSimilarLimit)
	return cmd
}

type resultLine struct {
	RecipeID   string   `json:"recipe_id"`
	Name       string   `json:"name"`
	Cuisine    string   `json:"cuisine,omitempty"`
	Similarity float64  `json:"similarity"`
	Score      float64  `json:"score"`
	Sources    []string `json:"sources"`
}

func printResults(w io.Writer, results search.Results, asJSON bool) error {
	hits := results.Hits()

	if asJSON {
		lines := make([]resultLine, 0, len(hits))
		for _, h := range hits {
			lines = append(lines, resultLine{
				RecipeID:   h.RecipeID(),
				Name:       h.Summary().Name,
				Cuisine:    h.Summary().Cuisine,
				Similarity: h.Similarity(),
				Score:      h.Score(),
				Sources:    h.Sources().Names(),
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"results": lines, "considered": results.Considered()})
	}

	if len(hits) == 0 {
		_, err := fmt.Fprintf(w, "no matches (%d recipes considered)\n", results.Considered())
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SCORE\tSIMILARITY\tID\tNAME\tSOURCES")
	for _, h := range hits {
		_, _ = fmt.Fprintf(tw, "%.3f\t%.3f\t%s\t%s\t%s\n",
			h.Score(), h.Similarity(), h.RecipeID(), h.Summary().Name, strings.Join(h.Sources().Names(), "+"))
	}
	return tw.Flush()
}
