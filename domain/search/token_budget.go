package search

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Default provider request shape. Synthesized recipe text is a few hundred
// characters, so the cap only bites on runaway descriptions.
const (
	DefaultMaxChars  = 8000
	DefaultBatchSize = 32
)

// TokenBudget bounds what is sent to an embedding provider: every text is
// cut to maxChars runes, and a batch holds at most maxBatchSize texts whose
// cut lengths sum to at most maxChars.
type TokenBudget struct {
	maxChars     int
	maxBatchSize int
}

// NewTokenBudget creates a budget of maxChars runes with one text per batch.
func NewTokenBudget(maxChars int) (TokenBudget, error) {
	if maxChars <= 0 {
		return TokenBudget{}, fmt.Errorf("token budget: maxChars must be positive, got %d", maxChars)
	}
	return TokenBudget{maxChars: maxChars, maxBatchSize: 1}, nil
}

// DefaultTokenBudget returns DefaultMaxChars in batches of DefaultBatchSize.
func DefaultTokenBudget() TokenBudget {
	return TokenBudget{maxChars: DefaultMaxChars, maxBatchSize: DefaultBatchSize}
}

// MaxChars returns the per-text rune cap.
func (b TokenBudget) MaxChars() int { return b.maxChars }

// MaxBatchSize returns the per-batch text cap.
func (b TokenBudget) MaxBatchSize() int { return b.maxBatchSize }

// WithMaxBatchSize returns a copy holding at most n texts per batch, at
// least one.
func (b TokenBudget) WithMaxBatchSize(n int) TokenBudget {
	b.maxBatchSize = max(n, 1)
	return b
}

// Truncate cuts text to the rune cap and drops whitespace left dangling at
// the cut.
func (b TokenBudget) Truncate(text string) string {
	if utf8.RuneCountInString(text) <= b.maxChars {
		return text
	}
	cut := []rune(text)[:b.maxChars]
	return strings.TrimRightFunc(string(cut), unicode.IsSpace)
}

// Batches groups documents in order. A batch closes when the next document
// would exceed either cap; a document longer than the rune cap on its own
// still forms a batch of one.
func (b TokenBudget) Batches(documents []Document) [][]Document {
	var (
		batches [][]Document
		current []Document
		chars   int
	)
	for _, d := range documents {
		n := min(utf8.RuneCountInString(d.Text()), b.maxChars)
		if len(current) > 0 && (len(current) == b.maxBatchSize || chars+n > b.maxChars) {
			batches = append(batches, current)
			current, chars = nil, 0
		}
		current = append(current, d)
		chars += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
