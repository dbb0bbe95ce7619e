package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// palette holds the escape sequences for one output mode. The plain palette
// is all empty strings.
type palette struct {
	reset, dim, bold, debug, info, warn, err string
}

var (
	ansiPalette = palette{
		reset: "\033[0m",
		dim:   "\033[2m",
		bold:  "\033[1m",
		debug: "\033[36m",
		info:  "\033[32m",
		warn:  "\033[33m",
		err:   "\033[31m",
	}
	plainPalette = palette{}
)

// terminalHandler writes one human-readable line per record:
//
//	15:04:05.000 INF backfill finished embedded=42 failed=0
//
// Colour is used only when the writer is a terminal.
type terminalHandler struct {
	writer  io.Writer
	level   slog.Leveler
	colours palette
	attrs   []slog.Attr
	groups  []string
	mu      *sync.Mutex
}

func newTerminalHandler(w io.Writer, opts *slog.HandlerOptions, colour bool) *terminalHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	p := plainPalette
	if colour {
		p = ansiPalette
	}
	return &terminalHandler{writer: w, level: level, colours: p, mu: &sync.Mutex{}}
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.Grow(256)
	c := h.colours

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(c.dim + ts.Format("15:04:05.000") + c.reset + " ")

	colour, label := h.levelStyle(r.Level)
	buf.WriteString(colour + label + c.reset + " ")
	buf.WriteString(c.bold + r.Message + c.reset)

	for _, a := range h.attrs {
		h.appendAttr(&buf, a, h.groups)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, a, h.groups)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append(make([]slog.Attr, 0, len(h.attrs)+len(attrs)), h.attrs...), attrs...)
	return &clone
}

func (h *terminalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append(make([]string, 0, len(h.groups)+1), h.groups...), name)
	return &clone
}

func (h *terminalHandler) levelStyle(level slog.Level) (string, string) {
	switch {
	case level < slog.LevelInfo:
		return h.colours.debug, "DBG"
	case level < slog.LevelWarn:
		return h.colours.info, "INF"
	case level < slog.LevelError:
		return h.colours.warn, "WRN"
	default:
		return h.colours.err, "ERR"
	}
}

func (h *terminalHandler) appendAttr(buf *bytes.Buffer, a slog.Attr, groups []string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		prefix := groups
		if a.Key != "" {
			prefix = append(append(make([]string, 0, len(groups)+1), groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(buf, ga, prefix)
		}
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	buf.WriteString(" " + h.colours.dim + key + "=" + h.colours.reset)
	buf.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"\\=") {
			return fmt.Sprintf("%q", s)
		}
		return s
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	default:
		return v.String()
	}
}
