package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/search"
)

// RecipeModel is the GORM model for the recipes table. The table belongs to
// the CRUD collaborator; the engine only reads it.
type RecipeModel struct {
	ID          string         `gorm:"column:id;primaryKey"`
	OwnerID     string         `gorm:"column:owner_id;index"`
	Name        string         `gorm:"column:name;not null"`
	Description string         `gorm:"column:description"`
	Cuisine     string         `gorm:"column:cuisine;index"`
	Difficulty  string         `gorm:"column:difficulty"`
	Tags        datatypes.JSON `gorm:"column:tags"`
	Ingredients datatypes.JSON `gorm:"column:ingredients"`
	Visibility  string         `gorm:"column:visibility;index;not null;default:private"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name.
func (RecipeModel) TableName() string { return "recipes" }

type recipeMapper struct{}

func (recipeMapper) ToDomain(e RecipeModel) recipe.Recipe {
	return recipe.New(e.ID, e.Name,
		recipe.WithOwner(e.OwnerID),
		recipe.WithDescription(e.Description),
		recipe.WithCuisine(e.Cuisine),
		recipe.WithDifficulty(e.Difficulty),
		recipe.WithTags(decodeStrings(e.Tags)...),
		recipe.WithIngredients(decodeStrings(e.Ingredients)...),
		recipe.WithVisibility(recipe.Visibility(e.Visibility)),
		recipe.WithTimestamps(e.CreatedAt, e.UpdatedAt),
	)
}

func (recipeMapper) ToModel(r recipe.Recipe) RecipeModel {
	return RecipeModel{
		ID:          r.ID(),
		OwnerID:     r.OwnerID(),
		Name:        r.Name(),
		Description: r.Description(),
		Cuisine:     r.Cuisine(),
		Difficulty:  r.Difficulty(),
		Tags:        encodeStrings(r.Tags()),
		Ingredients: encodeStrings(r.Ingredients()),
		Visibility:  string(r.Visibility()),
		CreatedAt:   r.CreatedAt(),
		UpdatedAt:   r.UpdatedAt(),
	}
}

func decodeStrings(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func encodeStrings(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	raw, _ := json.Marshal(values)
	return datatypes.JSON(raw)
}

// Float32Slice stores a vector as a JSON array in SQLite.
type Float32Slice []float32

// Scan implements sql.Scanner for reading JSON from SQLite.
func (f *Float32Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Float32Slice", value)
	}

	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer for writing JSON to SQLite.
func (f Float32Slice) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]float32(f))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// SQLiteEmbeddingModel is an embedding row in SQLite.
type SQLiteEmbeddingModel struct {
	ID         int64        `gorm:"column:id;primaryKey;autoIncrement"`
	RecipeID   string       `gorm:"column:recipe_id"`
	ModelName  string       `gorm:"column:model_name"`
	Vector     Float32Slice `gorm:"column:vector"`
	SourceText string       `gorm:"column:source_text"`
	CreatedAt  time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name.
func (SQLiteEmbeddingModel) TableName() string { return embeddingsTable }

type sqliteEmbeddingMapper struct{}

func (sqliteEmbeddingMapper) ToDomain(e SQLiteEmbeddingModel) search.Embedding {
	return search.ReconstructEmbedding(e.RecipeID, e.ModelName, e.SourceText, e.Vector, e.CreatedAt, e.UpdatedAt)
}

func (sqliteEmbeddingMapper) ToModel(d search.Embedding) SQLiteEmbeddingModel {
	return SQLiteEmbeddingModel{
		RecipeID:   d.RecipeID(),
		ModelName:  d.ModelName(),
		Vector:     d.Vector(),
		SourceText: d.SourceText(),
	}
}

// PgEmbeddingModel is an embedding row in PostgreSQL.
type PgEmbeddingModel struct {
	ID         int64           `gorm:"column:id;primaryKey;autoIncrement"`
	RecipeID   string          `gorm:"column:recipe_id"`
	ModelName  string          `gorm:"column:model_name"`
	Vector     pgvector.Vector `gorm:"column:vector;type:vector"`
	SourceText string          `gorm:"column:source_text"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name.
func (PgEmbeddingModel) TableName() string { return embeddingsTable }

type pgEmbeddingMapper struct{}

func (pgEmbeddingMapper) ToDomain(e PgEmbeddingModel) search.Embedding {
	return search.ReconstructEmbedding(e.RecipeID, e.ModelName, e.SourceText, e.Vector.Slice(), e.CreatedAt, e.UpdatedAt)
}

func (pgEmbeddingMapper) ToModel(d search.Embedding) PgEmbeddingModel {
	return PgEmbeddingModel{
		RecipeID:   d.RecipeID(),
		ModelName:  d.ModelName(),
		Vector:     pgvector.NewVector(d.Vector()),
		SourceText: d.SourceText(),
	}
}
