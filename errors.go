package pantry

import (
	"errors"

	"github.com/helixml/pantry/application/service"
)

var (
	// ErrNoDatabase is returned by New when no database option was given.
	ErrNoDatabase = errors.New("pantry: no database configured, use WithSQLite, WithPostgres or WithDatabase")

	// ErrNoModel is returned by New when a custom embedder is given without
	// WithModel.
	ErrNoModel = errors.New("pantry: WithEmbedder requires WithModel")

	// ErrClientClosed is returned by operations on a closed client.
	ErrClientClosed = service.ErrClientClosed
)
