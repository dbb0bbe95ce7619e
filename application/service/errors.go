package service

import (
	"errors"
	"fmt"

	"github.com/helixml/pantry/domain/search"
)

// ErrClientClosed indicates the client has been closed.
var ErrClientClosed = errors.New("pantry: client is closed")

// unavailable wraps a provider failure in search.ErrEmbeddingUnavailable
// unless it already carries it.
func unavailable(err error) error {
	if errors.Is(err, search.ErrEmbeddingUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", search.ErrEmbeddingUnavailable, err)
}
