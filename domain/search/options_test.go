package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOptions(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		wantLimit int
		wantMin   float64
	}{
		{"defaults", nil, 20, 0.5},
		{"explicit", []Option{WithLimit(5), WithMinSimilarity(0.3)}, 5, 0.3},
		{"limit clamped high", []Option{WithLimit(500)}, 100, 0.5},
		{"zero limit uses default", []Option{WithLimit(0)}, 20, 0.5},
		{"negative limit uses default", []Option{WithLimit(-3)}, 20, 0.5},
		{"floor clamped", []Option{WithMinSimilarity(2)}, 20, 1},
		{"last option wins", []Option{WithLimit(6), WithLimit(8)}, 8, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions(tt.opts...)
			assert.Equal(t, tt.wantLimit, o.Limit())
			assert.InDelta(t, tt.wantMin, o.MinSimilarity(), 1e-12)
		})
	}
}

func TestOptions_Scope(t *testing.T) {
	o := NewOptions(WithViewer("alice"), WithIncludePrivate(true))
	assert.True(t, o.Scope().IncludesOwnPrivate())
	assert.Equal(t, "alice", o.Scope().ViewerID())
}
