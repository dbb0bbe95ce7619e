// Package tracking reports backfill progress.
package tracking

import (
	"log/slog"
	"sync"
	"time"

	"github.com/helixml/pantry/application/service"
)

// Reporter receives backfill progress snapshots.
type Reporter func(service.BackfillReport)

// LogReport logs one snapshot at info level.
func LogReport(logger *slog.Logger, msg string, r service.BackfillReport) {
	logger.Info(msg,
		slog.Int("scanned", r.Scanned),
		slog.Int("embedded", r.Embedded),
		slog.Int("refreshed", r.Refreshed),
		slog.Int("skipped", r.Skipped),
		slog.Int("failed", r.Failed),
	)
}

// Logging returns a Reporter that logs every snapshot with msg.
func Logging(logger *slog.Logger, msg string) Reporter {
	return func(r service.BackfillReport) { LogReport(logger, msg, r) }
}

// Cooldown limits how often snapshots reach the inner Reporter. Snapshots
// arriving within interval of the last delivered one are dropped.
type Cooldown struct {
	inner    Reporter
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewCooldown wraps inner so it is called at most once per interval.
func NewCooldown(inner Reporter, interval time.Duration) *Cooldown {
	return &Cooldown{inner: inner, interval: interval, now: time.Now}
}

// Report delivers r unless another snapshot was delivered less than the
// interval ago. It is safe for concurrent use.
func (c *Cooldown) Report(r service.BackfillReport) {
	c.mu.Lock()
	now := c.now()
	if !c.last.IsZero() && now.Sub(c.last) < c.interval {
		c.mu.Unlock()
		return
	}
	c.last = now
	c.mu.Unlock()

	c.inner(r)
}
