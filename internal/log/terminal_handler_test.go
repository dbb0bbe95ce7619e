package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalHandler_PlainFormat(t *testing.T) {
	var buf bytes.Buffer
	h := newTerminalHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)

	ts := time.Date(2026, 1, 15, 10, 30, 45, 123000000, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "backfill finished", 0)
	r.AddAttrs(slog.Int("embedded", 42), slog.String("model", "all-minilm-l6-v2"))

	require.NoError(t, h.Handle(context.Background(), r))
	assert.Equal(t, "10:30:45.123 INF backfill finished embedded=42 model=all-minilm-l6-v2\n", buf.String())
}

func TestTerminalHandler_ColourOnlyWhenAsked(t *testing.T) {
	var plain, colour bytes.Buffer
	slog.New(newTerminalHandler(&plain, nil, false)).Warn("slow provider")
	slog.New(newTerminalHandler(&colour, nil, true)).Warn("slow provider")

	assert.NotContains(t, plain.String(), "\033[")
	assert.Contains(t, colour.String(), "\033[33mWRN")
}

func TestTerminalHandler_Levels(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, "DBG"},
		{slog.LevelInfo, "INF"},
		{slog.LevelWarn, "WRN"},
		{slog.LevelError, "ERR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		h := newTerminalHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
		require.NoError(t, h.Handle(context.Background(), slog.NewRecord(time.Now(), tt.level, "m", 0)))
		assert.Contains(t, buf.String(), " "+tt.want+" ")
	}
}

func TestTerminalHandler_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTerminalHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false))

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestTerminalHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTerminalHandler(&buf, nil, false)).
		With("component", "backfill").
		WithGroup("report")

	logger.Info("done", slog.Int("failed", 0), slog.Group("batch", slog.Int("size", 16)))

	out := buf.String()
	assert.Contains(t, out, " component=backfill")
	assert.Contains(t, out, " report.failed=0")
	assert.Contains(t, out, " report.batch.size=16")
}

func TestTerminalHandler_QuotesAndDurations(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newTerminalHandler(&buf, nil, false)).Info("searched",
		slog.String("query", "thai curry"),
		slog.String("empty", ""),
		slog.Duration("took", 1234567*time.Nanosecond),
	)

	out := buf.String()
	assert.Contains(t, out, `query="thai curry"`)
	assert.Contains(t, out, `empty=""`)
	assert.Contains(t, out, "took=1ms")
}

func TestTerminalHandler_EmptyGroupIsNoop(t *testing.T) {
	h := newTerminalHandler(&bytes.Buffer{}, nil, false)
	assert.Same(t, h, h.WithGroup(""))
}
