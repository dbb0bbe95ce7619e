package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/infrastructure/tracking"
)

// seedRecipe is one entry of a seed file.
type seedRecipe struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Cuisine     string    `yaml:"cuisine"`
	Difficulty  string    `yaml:"difficulty"`
	Tags        []string  `yaml:"tags"`
	Ingredients []string  `yaml:"ingredients"`
	Owner       string    `yaml:"owner"`
	Visibility  string    `yaml:"visibility"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

func seedCmd(envFile *string) *cobra.Command {
	var backfill bool

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load recipes from a YAML file",
		Long: `Load recipes from a YAML file into the recipe table, for development.

The file is a list of recipes:

  - id: 6f1c...            # optional, a UUID is assigned when absent
    name: Thai green curry
    description: Fragrant coconut curry
    cuisine: thai
    difficulty: easy
    tags: [curry, spicy]
    ingredients: [coconut milk, green curry paste, chicken]
    visibility: public     # public (default), private or system
    owner: alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer func() { _ = f.Close() }()

			recipes, err := parseSeed(f, time.Now().UTC())
			if err != nil {
				return err
			}

			client, _, err := openClient(*envFile, nil)
			if err != nil {
				return err
			}
			defer closeClient(client)

			ctx := cmd.Context()
			if err := client.Seed(ctx, recipes...); err != nil {
				return fmt.Errorf("seed recipes: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d recipes\n", len(recipes))

			if backfill {
				report, err := client.Backfill.Run(ctx)
				if err != nil {
					return fmt.Errorf("backfill: %w", err)
				}
				tracking.LogReport(client.Logger(), "backfill finished", report)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&backfill, "backfill", false, "Embed the recipes after loading them")

	return cmd
}

// parseSeed decodes a seed file. Recipes without an ID get a UUID; missing
// timestamps default to now.
func parseSeed(r io.Reader, now time.Time) ([]recipe.Recipe, error) {
	var entries []seedRecipe
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	recipes := make([]recipe.Recipe, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("seed entry %d: name is required", i+1)
		}

		id := strings.TrimSpace(e.ID)
		if id == "" {
			id = uuid.NewString()
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("seed entry %d: duplicate id %q", i+1, id)
		}
		seen[id] = struct{}{}

		visibility := recipe.VisibilityPublic
		if e.Visibility != "" {
			v, err := recipe.ParseVisibility(e.Visibility)
			if err != nil {
				return nil, fmt.Errorf("seed entry %d: %w", i+1, err)
			}
			visibility = v
		}
		if visibility == recipe.VisibilityPrivate && e.Owner == "" {
			return nil, fmt.Errorf("seed entry %d: private recipes need an owner", i+1)
		}

		created, updated := e.CreatedAt, e.UpdatedAt
		if created.IsZero() {
			created = now
		}
		if updated.IsZero() {
			updated = created
		}

		recipes = append(recipes, recipe.New(id, e.Name,
			recipe.WithDescription(e.Description),
			recipe.WithCuisine(e.Cuisine),
			recipe.WithDifficulty(e.Difficulty),
			recipe.WithTags(e.Tags...),
			recipe.WithIngredients(e.Ingredients...),
			recipe.WithOwner(e.Owner),
			recipe.WithVisibility(visibility),
			recipe.WithTimestamps(created, updated),
		))
	}
	return recipes, nil
}
