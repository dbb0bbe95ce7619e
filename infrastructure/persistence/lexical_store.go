package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/helixml/pantry/domain/search"
	"github.com/helixml/pantry/internal/database"
)

// Field weights for a term found in each recipe field. A term scores the
// weight of the best field it appears in.
const (
	nameWeight        = 1.0
	tagWeight         = 0.8
	descriptionWeight = 0.5
)

// lexicalCandidateCap bounds how many matching rows are scored in memory.
const lexicalCandidateCap = 1000

// SQLLexicalStore implements search.LexicalStore with substring matching over
// recipe name, description and tags. A recipe's score is the mean over query
// terms of the best field weight each term matched, so it lies in [0, 1].
type SQLLexicalStore struct {
	db database.Database
}

// NewSQLLexicalStore creates a SQLLexicalStore.
func NewSQLLexicalStore(db database.Database) *SQLLexicalStore {
	return &SQLLexicalStore{db: db}
}

type lexicalRow struct {
	ID          string `gorm:"column:id"`
	Name        string `gorm:"column:name"`
	Description string `gorm:"column:description"`
	Tags        string `gorm:"column:tags"`
}

// Find returns recipes matching any query term, best first.
func (s *SQLLexicalStore) Find(ctx context.Context, query string, filter search.Filter, limit int) ([]search.LexicalHit, error) {
	terms := search.Terms(query)
	if len(terms) == 0 {
		return []search.LexicalHit{}, nil
	}

	tx := s.db.Session(ctx).Table("recipes AS r")
	tx = applyRecipeFilter(tx, s.db.Dialect(), filter)

	clauses := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms)*3)
	for _, term := range terms {
		pattern := "%" + term + "%"
		clauses = append(clauses, "(LOWER(r.name) LIKE ? OR LOWER(r.description) LIKE ? OR LOWER(CAST(r.tags AS TEXT)) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	tx = tx.Where(strings.Join(clauses, " OR "), args...)

	var rows []lexicalRow
	err := tx.Select("r.id, r.name, r.description, CAST(r.tags AS TEXT) AS tags").
		Order("r.id ASC").
		Limit(lexicalCandidateCap).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	hits := make([]search.LexicalHit, 0, len(rows))
	for _, row := range rows {
		score := scoreTerms(terms, row.Name, row.Description, decodeStrings([]byte(row.Tags)))
		if score > 0 {
			hits = append(hits, search.NewLexicalHit(row.ID, score))
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score() != hits[j].Score() {
			return hits[i].Score() > hits[j].Score()
		}
		return hits[i].RecipeID() < hits[j].RecipeID()
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// scoreTerms averages, over terms, the weight of the best field each term
// appears in.
func scoreTerms(terms []string, name, description string, tags []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	name = strings.ToLower(name)
	description = strings.ToLower(description)

	var total float64
	for _, term := range terms {
		switch {
		case strings.Contains(name, term):
			total += nameWeight
		case containsTag(tags, term):
			total += tagWeight
		case strings.Contains(description, term):
			total += descriptionWeight
		}
	}
	return total / float64(len(terms))
}

func containsTag(tags []string, term string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}
