package persistence

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/internal/database"
)

// A second write for (recipe_id, model_name) replaces the vector and source
// text and refreshes updated_at.
var (
	embeddingKey     = []string{"recipe_id", "model_name"}
	embeddingUpdates = []string{"vector", "source_text", "updated_at"}
)

// missingRecipeIDs returns recipes without a record for the model, paged by ID.
func missingRecipeIDs(db *gorm.DB, model search.Model, afterID string, limit int) ([]string, error) {
	tx := db.Table("recipes AS r").
		Joins("LEFT JOIN recipe_embeddings e ON e.recipe_id = r.id AND e.model_name = ?", model.Name()).
		Where("e.id IS NULL")
	if afterID != "" {
		tx = tx.Where("r.id > ?", afterID)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var ids []string
	if err := tx.Order("r.id ASC").Pluck("r.id", &ids).Error; err != nil {
		return nil, fmt.Errorf("find recipes missing %s embeddings: %w", model.Name(), err)
	}
	return ids, nil
}

func countForModel(db *gorm.DB, model search.Model) (int64, error) {
	var n int64
	if err := db.Table(embeddingsTable).Where("model_name = ?", model.Name()).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s embeddings: %w", model.Name(), err)
	}
	return n, nil
}

func deleteOtherModels(db *gorm.DB, model search.Model) (int64, error) {
	result := db.Exec("DELETE FROM recipe_embeddings WHERE model_name <> ?", model.Name())
	if result.Error != nil {
		return 0, fmt.Errorf("purge embeddings of other models: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// translateWriteError maps constraint failures to domain errors.
func translateWriteError(err error, recipeID string) error {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return fmt.Errorf("%w: %s", recipe.ErrNotFound, recipeID)
	}
	return fmt.Errorf("upsert embedding for %s: %w", recipeID, err)
}

func notFound(err error, model search.Model, recipeID string) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %s/%s", search.ErrEmbeddingNotFound, model.Name(), recipeID)
	}
	return err
}
