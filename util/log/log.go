package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"
)

/*
Package log emits slog records carrying tags from the context. Request
handlers attach tags (request id, dataset name) with AddTags, and everything
logged below them inherits the tags without threading a logger through.
*/

////////////////////////////////////////////////////////////////////////////////

type contextKey int

const (
	logTagKey contextKey = iota
)

// Configure installs the default slog handler. Format is "text" or "json".
func Configure(w io.Writer, level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		slog.SetDefault(slog.New(slog.NewTextHandler(w, opts)))
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(w, opts)))
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

// AddTags returns a context whose log records carry kvs.
func AddTags(ctx context.Context, kvs ...any) context.Context {
	if len(kvs)%2 != 0 {
		panic("log: AddTags requires an even number of arguments")
	}
	tags := append([]any{}, fromContext(ctx)...)
	return context.WithValue(ctx, logTagKey, append(tags, kvs...))
}

func fromContext(ctx context.Context) []any {
	tags, _ := ctx.Value(logTagKey).([]any)
	return tags
}

func emit(ctx context.Context, level slog.Level, msg string, keyvals []any) {
	handler := slog.Default().Handler()
	if !handler.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(keyvals...)
	r.Add(fromContext(ctx)...)
	if err := handler.Handle(ctx, r); err != nil {
		slog.ErrorContext(ctx, "error handling log record", "error", err)
	}
}

func Infof(ctx context.Context, format string, args ...any) {
	emit(ctx, slog.LevelInfo, fmt.Sprintf(format, args...), nil)
}

func Errorf(ctx context.Context, format string, args ...any) {
	emit(ctx, slog.LevelError, fmt.Sprintf(format, args...), nil)
}

func Debugf(ctx context.Context, format string, args ...any) {
	emit(ctx, slog.LevelDebug, fmt.Sprintf(format, args...), nil)
}

func Warnf(ctx context.Context, format string, args ...any) {
	emit(ctx, slog.LevelWarn, fmt.Sprintf(format, args...), nil)
}

func Infow(ctx context.Context, msg string, keyvals ...any) {
	emit(ctx, slog.LevelInfo, msg, keyvals)
}

func Errorw(ctx context.Context, msg string, keyvals ...any) {
	emit(ctx, slog.LevelError, msg, keyvals)
}

func Debugw(ctx context.Context, msg string, keyvals ...any) {
	emit(ctx, slog.LevelDebug, msg, keyvals)
}

func Warnw(ctx context.Context, msg string, keyvals ...any) {
	emit(ctx, slog.LevelWarn, msg, keyvals)
}
