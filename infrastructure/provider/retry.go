package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/helixml/pantry/domain/search"
)

// Retry defaults: two retries after the first attempt, 200ms then 400ms.
const (
	DefaultMaxRetries     = 2
	DefaultInitialBackoff = 200 * time.Millisecond
	DefaultAttemptTimeout = 10 * time.Second
)

// RetryOption configures a Retrying embedder.
type RetryOption func(*Retrying)

// WithMaxRetries sets how many times a failed call is retried.
func WithMaxRetries(n int) RetryOption {
	return func(r *Retrying) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithInitialBackoff sets the delay before the first retry. Each further
// retry doubles it.
func WithInitialBackoff(d time.Duration) RetryOption {
	return func(r *Retrying) {
		if d >= 0 {
			r.initialBackoff = d
		}
	}
}

// WithAttemptTimeout bounds each individual provider call.
func WithAttemptTimeout(d time.Duration) RetryOption {
	return func(r *Retrying) {
		if d > 0 {
			r.attemptTimeout = d
		}
	}
}

// WithRetryLogger sets the logger.
func WithRetryLogger(l *slog.Logger) RetryOption {
	return func(r *Retrying) {
		if l != nil {
			r.logger = l
		}
	}
}

// Retrying wraps an embedder with per-attempt timeouts and bounded retries
// with doubling backoff. Errors that survive every attempt are wrapped in
// search.ErrEmbeddingUnavailable.
type Retrying struct {
	inner          search.Embedder
	maxRetries     int
	initialBackoff time.Duration
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewRetrying creates a Retrying embedder.
func NewRetrying(inner search.Embedder, opts ...RetryOption) *Retrying {
	r := &Retrying{
		inner:          inner,
		maxRetries:     DefaultMaxRetries,
		initialBackoff: DefaultInitialBackoff,
		attemptTimeout: DefaultAttemptTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Embed calls the wrapped embedder until it succeeds, fails permanently or
// runs out of retries.
func (r *Retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	delay := r.initialBackoff
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, unavailable(err)
		}

		vectors, err := r.attempt(ctx, texts)
		if err == nil {
			if attempt > 0 {
				r.logger.DebugContext(ctx, "embedding succeeded after retry", slog.Int("attempt", attempt+1))
			}
			return vectors, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == r.maxRetries {
			break
		}

		r.logger.WarnContext(ctx, "embedding attempt failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, unavailable(ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}

	if errors.Is(lastErr, search.ErrDimensionMismatch) {
		return nil, lastErr
	}
	return nil, unavailable(lastErr)
}

func (r *Retrying) attempt(ctx context.Context, texts []string) ([][]float32, error) {
	actx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()
	return r.inner.Embed(actx, texts)
}

func unavailable(err error) error {
	if errors.Is(err, search.ErrEmbeddingUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", search.ErrEmbeddingUnavailable, err)
}

var _ search.Embedder = (*Retrying)(nil)
