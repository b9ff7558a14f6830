// Package logutil configures structured logging for the engine. Generation
// runs log their start and end at Info and one line per denoising step at
// Trace.
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"
)

const LevelTrace slog.Level = -8

// NewLogger returns a text handler that names the trace level and trims
// source paths to their base name.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if attr.Value.Any().(slog.Level) == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				source := attr.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attr
		},
	}))
}

// Trace logs below Debug. Callers pay nothing when the level is disabled.
func Trace(msg string, args ...any) {
	logger := slog.Default()
	ctx := context.Background()
	if !logger.Enabled(ctx, LevelTrace) {
		return
	}
	pc, _, _, _ := runtime.Caller(1)
	record := slog.NewRecord(time.Now(), LevelTrace, msg, pc)
	record.Add(args...)
	logger.Handler().Handle(ctx, record)
}
