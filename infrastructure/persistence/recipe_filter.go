package persistence

import (
	"gorm.io/gorm"

	"github.com/helixml/pantry/domain/recipe"
	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/internal/database"
)

// applyRecipeFilter restricts a query that joins the recipes table as "r" to
// the recipes a filter admits. Visibility is always applied.
func applyRecipeFilter(tx *gorm.DB, dialect string, filter search.Filter) *gorm.DB {
	scope := filter.Scope()
	shared := []string{string(recipe.VisibilityPublic), string(recipe.VisibilitySystem)}
	if scope.IncludesOwnPrivate() {
		tx = tx.Where("(r.visibility IN ? OR (r.visibility = ? AND r.owner_id = ?))",
			shared, string(recipe.VisibilityPrivate), scope.ViewerID())
	} else {
		tx = tx.Where("r.visibility IN ?", shared)
	}

	if cuisine := filter.Cuisine(); cuisine != "" {
		tx = tx.Where("LOWER(r.cuisine) = LOWER(?)", cuisine)
	}
	if difficulty := filter.Difficulty(); difficulty != "" {
		tx = tx.Where("LOWER(r.difficulty) = LOWER(?)", difficulty)
	}
	for _, tag := range filter.Tags() {
		tx = tx.Where(tagMembershipSQL(dialect), tag)
	}
	if excluded := filter.ExcludeIDs(); len(excluded) > 0 {
		tx = tx.Where("r.id NOT IN ?", excluded)
	}
	return tx
}

func tagMembershipSQL(dialect string) string {
	if dialect == database.DialectPostgres {
		return "EXISTS (SELECT 1 FROM jsonb_array_elements_text(r.tags) AS t(v) WHERE LOWER(t.v) = ?)"
	}
	return "EXISTS (SELECT 1 FROM json_each(r.tags) WHERE LOWER(json_each.value) = ?)"
}
