// Package testembed provides a deterministic embedder for tests.
package testembed

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/helixml/pantry/domain/search"
)

// Vocabulary is the default term space. Each term owns one dimension.
var Vocabulary = []string{"thai", "curry", "noodles", "chocolate", "cake"}

// ErrDown is returned by a failing Vocab embedder.
var ErrDown = errors.New("embedding provider down")

// Vocab turns text into a presence vector over a fixed vocabulary. Text
// outside the vocabulary contributes nothing.
type Vocab struct {
	terms []string
	fail  atomic.Bool
	calls atomic.Int64
}

// New creates a Vocab over terms, or over Vocabulary when none are given.
func New(terms ...string) *Vocab {
	if len(terms) == 0 {
		terms = Vocabulary
	}
	return &Vocab{terms: terms}
}

// Dimension returns the vector length.
func (v *Vocab) Dimension() int { return len(v.terms) }

// SetFailing makes every following call fail with ErrDown.
func (v *Vocab) SetFailing(fail bool) { v.fail.Store(fail) }

// Calls returns how many times Embed was called.
func (v *Vocab) Calls() int64 { return v.calls.Load() }

// Embed implements search.Embedder.
func (v *Vocab) Embed(_ context.Context, texts []string) ([][]float32, error) {
	v.calls.Add(1)
	if v.fail.Load() {
		return nil, ErrDown
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(v.terms))
		for _, term := range search.Terms(text) {
			for d, word := range v.terms {
				if term == word {
					vec[d] = 1
				}
			}
		}
		out[i] = vec
	}
	return out, nil
}

var _ search.Embedder = (*Vocab)(nil)
