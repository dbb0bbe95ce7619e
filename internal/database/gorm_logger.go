package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQuery is the duration past which a statement is logged at warn.
const slowQuery = 500 * time.Millisecond

// maxSQLLength caps logged statements. Vector literals run to kilobytes.
const maxSQLLength = 200

// gormLogger sends GORM output to slog. Statements are logged at debug,
// slow ones at warn and failures at error. Level filtering is left to slog.
type gormLogger struct {
	log *slog.Logger
}

// NewGormLogger returns a GORM logger writing to log.
func NewGormLogger(log *slog.Logger) logger.Interface {
	if log == nil {
		log = slog.Default()
	}
	return gormLogger{log: log.With(slog.String("component", "gorm"))}
}

func (l gormLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (l gormLogger) Info(ctx context.Context, msg string, args ...any) {
	l.log.InfoContext(ctx, fmt.Sprintf(msg, args...))
}

func (l gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.log.WarnContext(ctx, fmt.Sprintf(msg, args...))
}

func (l gormLogger) Error(ctx context.Context, msg string, args ...any) {
	l.log.ErrorContext(ctx, fmt.Sprintf(msg, args...))
}

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	half := (maxSQLLength - 3) / 2
	return sql[:half] + "..." + sql[len(sql)-half:]
}

// Trace logs one statement. Record-not-found and cancellation are routine
// and never logged as errors.
func (l gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	routine := err == nil || errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, context.Canceled)

	level, msg := slog.LevelDebug, "gorm query"
	switch {
	case !routine:
		level, msg = slog.LevelError, "gorm query error"
	case elapsed > slowQuery:
		level, msg = slog.LevelWarn, "slow gorm query"
	}
	if !l.log.Enabled(ctx, level) {
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", truncateSQL(sql)),
		slog.Int64("rows", rows),
		slog.Duration("duration", elapsed),
	}
	if !routine {
		attrs = append(attrs, slog.Any("error", err))
	}
	l.log.LogAttrs(ctx, level, msg, attrs...)
}
