package search

import (
	"fmt"
	"strings"
)

// Model identifies the active embedding model generation. Every vector store
// call is scoped to exactly one Model.
type Model struct {
	name      string
	dimension int
}

// NewModel creates a Model.
func NewModel(name string, dimension int) (Model, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Model{}, fmt.Errorf("model name is required")
	}
	if dimension <= 0 {
		return Model{}, fmt.Errorf("model %s: dimension must be positive, got %d", name, dimension)
	}
	return Model{name: name, dimension: dimension}, nil
}

// Name returns the model name.
func (m Model) Name() string { return m.name }

// Dimension returns the vector length the model produces.
func (m Model) Dimension() int { return m.dimension }

// IsZero reports whether the model is unset.
func (m Model) IsZero() bool { return m.name == "" }

// String implements fmt.Stringer.
func (m Model) String() string { return fmt.Sprintf("%s/%d", m.name, m.dimension) }

// Check validates that e belongs to this model and has the right length.
func (m Model) Check(e Embedding) error {
	if e.ModelName() != m.name {
		return fmt.Errorf("%w: record for %q, active model %q", ErrModelMismatch, e.ModelName(), m.name)
	}
	return m.CheckVector(e.Vector())
}

// CheckVector validates a vector's length.
func (m Model) CheckVector(vector []float32) error {
	if len(vector) != m.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), m.dimension)
	}
	return nil
}
