package search

import (
	"fmt"
	"math"
	"sort"
)

// scorePrecision is the grid fused scores are rounded to before ordering.
// Scores within the same step count as equal.
const scorePrecision = 1e-9

// Fusion merges a semantic and a lexical ranked list with a weighted sum.
// A recipe found by both lists outranks a single-list recipe with the same
// weighted score.
type Fusion struct {
	semanticWeight float64
	lexicalWeight  float64
	dualBoost      float64
}

// NewFusion creates a Fusion with the default 0.7 / 0.3 weighting.
func NewFusion() Fusion {
	return Fusion{semanticWeight: 0.7, lexicalWeight: 0.3}
}

// NewFusionWithWeights creates a Fusion with custom weights. Weights must be
// non-negative and not both zero.
func NewFusionWithWeights(semantic, lexical float64) (Fusion, error) {
	if semantic < 0 || lexical < 0 {
		return Fusion{}, fmt.Errorf("fusion weights must be non-negative, got %v/%v", semantic, lexical)
	}
	if semantic == 0 && lexical == 0 {
		return Fusion{}, fmt.Errorf("fusion weights must not both be zero")
	}
	return Fusion{semanticWeight: semantic, lexicalWeight: lexical}, nil
}

// WithDualBoost returns a copy that adds boost to the score of recipes found
// by both lists. Negative values are treated as zero.
func (f Fusion) WithDualBoost(boost float64) Fusion {
	f.dualBoost = math.Max(0, boost)
	return f
}

// SemanticWeight returns the semantic weight.
func (f Fusion) SemanticWeight() float64 { return f.semanticWeight }

// LexicalWeight returns the lexical weight.
func (f Fusion) LexicalWeight() float64 { return f.lexicalWeight }

// DualBoost returns the additive dual-listing boost.
func (f Fusion) DualBoost() float64 { return f.dualBoost }

// Fuse merges the lists. semantic hits carry their similarity; lexical hits
// their normalised text score. resolved holds similarities for lexical-only
// recipes; a lexical-only recipe missing from resolved has no vector and is
// dropped. The result is deduplicated and sorted by fused score descending,
// dual-listed recipes first on ties, then recipe ID ascending.
func (f Fusion) Fuse(semantic []Hit, lexical []LexicalHit, resolved map[string]float64) []Hit {
	merged := make(map[string]Hit, len(semantic)+len(lexical))

	for _, h := range semantic {
		if existing, ok := merged[h.recipeID]; ok && existing.similarity >= h.similarity {
			continue
		}
		merged[h.recipeID] = Hit{
			recipeID:   h.recipeID,
			similarity: h.similarity,
			sources:    SourceSemantic,
			summary:    h.summary,
		}
	}

	for _, l := range lexical {
		hit, ok := merged[l.recipeID]
		if !ok {
			similarity, known := resolved[l.recipeID]
			if !known {
				continue
			}
			hit = Hit{recipeID: l.recipeID, similarity: similarity}
		}
		if hit.sources.Has(SourceLexical) && hit.lexical >= l.score {
			continue
		}
		hit.lexical = l.score
		hit.sources |= SourceLexical
		merged[l.recipeID] = hit
	}

	results := make([]Hit, 0, len(merged))
	for _, h := range merged {
		h.score = f.semanticWeight*h.similarity + f.lexicalWeight*h.lexical
		if h.sources.Has(SourceSemantic | SourceLexical) {
			h.score += f.dualBoost
		}
		results = append(results, h)
	}

	SortHits(results)
	return results
}

// SortHits orders hits by score descending, dual-listed hits first among
// equal scores, then recipe ID ascending.
func SortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		return hitLess(hits[i], hits[j])
	})
}

func hitLess(a, b Hit) bool {
	if ka, kb := scoreKey(a.score), scoreKey(b.score); ka != kb {
		return ka > kb
	}
	aDual := a.sources.Has(SourceSemantic | SourceLexical)
	bDual := b.sources.Has(SourceSemantic | SourceLexical)
	if aDual != bDual {
		return aDual
	}
	return a.recipeID < b.recipeID
}

// scoreKey rounds a score onto the precision grid so that equality is
// transitive.
func scoreKey(score float64) int64 {
	return int64(math.Round(score / scorePrecision))
}

// AboveFloor keeps hits whose similarity is at least floor, preserving order.
func AboveFloor(hits []Hit, floor float64) []Hit {
	kept := hits[:0:0]
	for _, h := range hits {
		if h.similarity >= floor {
			kept = append(kept, h)
		}
	}
	return kept
}

// TopK truncates hits to at most k entries.
func TopK(hits []Hit, k int) []Hit {
	if k <= 0 || k >= len(hits) {
		return hits
	}
	return hits[:k]
}
