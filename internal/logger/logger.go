// Package logger builds the application's slog loggers and carries
// request-scoped loggers through a context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// LevelNone is above every level slog emits, silencing the logger.
const LevelNone = slog.Level(16)

// ParseLogLevel maps debug|info|warn|error|none to a slog level.
// Unknown values fall back to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		return LevelNone
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to w. The dev and test environments get a
// colored human-readable handler, everything else gets JSON.
func New(level slog.Level, environment string, w io.Writer) *slog.Logger {
	var h slog.Handler
	switch environment {
	case "dev", "test":
		h = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    environment == "test",
		})
	default:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(h).With(slog.String("environment", environment))
}

type ctxKey int

const (
	loggerKey ctxKey = iota
	attrsKey
)

// attrBag collects attributes added while a request is handled so they can
// be emitted on the final request log line.
type attrBag struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

// ContextWithRequestLogger stores l in ctx along with an empty attribute bag.
func ContextWithRequestLogger(ctx context.Context, l *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, loggerKey, l)
	return context.WithValue(ctx, attrsKey, &attrBag{})
}

// ContextRequestLogger returns the request logger stored in ctx, or a
// discarding logger when none is present.
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// ContextWithLogAttrs records attrs for the request's final log line.
// It is a no-op when ctx carries no request logger.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	bag, ok := ctx.Value(attrsKey).(*attrBag)
	if !ok {
		return
	}
	bag.mu.Lock()
	bag.attrs = append(bag.attrs, attrs...)
	bag.mu.Unlock()
}

// ContextLogAttrs returns a copy of the attributes recorded for ctx.
func ContextLogAttrs(ctx context.Context) []slog.Attr {
	bag, ok := ctx.Value(attrsKey).(*attrBag)
	if !ok {
		return nil
	}
	bag.mu.Lock()
	defer bag.mu.Unlock()
	out := make([]slog.Attr, len(bag.attrs))
	copy(out, bag.attrs)
	return out
}
