// Package persistence provides database storage implementations for recipes,
// embedding records and lexical search.
package persistence

import (
	"fmt"

	"github.com/helixml/pantry/internal/database"
)

// embeddingsTable is the table holding one vector per recipe per model.
const embeddingsTable = "recipe_embeddings"

var sqliteEmbeddingSchema = []string{
	`CREATE TABLE IF NOT EXISTS recipe_embeddings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recipe_id TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
	model_name TEXT NOT NULL,
	vector TEXT NOT NULL,
	source_text TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_recipe_embeddings_recipe_model ON recipe_embeddings (recipe_id, model_name)`,
	`CREATE INDEX IF NOT EXISTS idx_recipe_embeddings_model ON recipe_embeddings (model_name)`,
}

// The vector column is left untyped so that generations with different
// dimensions can coexist; each model gets its own partial HNSW index with a
// typed cast (see PgVectorStore).
var postgresEmbeddingSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS recipe_embeddings (
	id BIGSERIAL PRIMARY KEY,
	recipe_id TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
	model_name TEXT NOT NULL,
	vector vector NOT NULL,
	source_text TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_recipe_embeddings_recipe_model ON recipe_embeddings (recipe_id, model_name)`,
	`CREATE INDEX IF NOT EXISTS idx_recipe_embeddings_model ON recipe_embeddings (model_name)`,
}

// AutoMigrate creates the recipes table through GORM and the embedding table
// with dialect-specific DDL. Safe to run on every startup.
func AutoMigrate(db database.Database) error {
	if err := db.GORM().AutoMigrate(&RecipeModel{}); err != nil {
		return fmt.Errorf("migrate recipes: %w", err)
	}

	statements := sqliteEmbeddingSchema
	if db.IsPostgres() {
		statements = postgresEmbeddingSchema
	}
	for _, stmt := range statements {
		if err := db.GORM().Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate %s: %w", embeddingsTable, err)
		}
	}
	return nil
}
