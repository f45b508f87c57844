package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/shibukawa/exprquery/evaluator"
)

// newLogger writes diagnostics to w. Only warnings pass unless verbose is set.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// evaluationLogger forwards evaluation log entries to logger.
func evaluationLogger(logger *slog.Logger) evaluator.LoggerFunc {
	return func(ctx context.Context, entry evaluator.EvaluationLogEntry) {
		attrs := []slog.Attr{
			slog.String("name", entry.Name),
			slog.String("expression", entry.Expression),
			slog.Duration("duration", entry.Duration),
		}

		if entry.Error != "" {
			logger.LogAttrs(ctx, slog.LevelWarn, "expression failed", append(attrs, slog.String("error", entry.Error))...)
			return
		}

		logger.LogAttrs(ctx, slog.LevelDebug, "expression evaluated", append(attrs, slog.Any("value", entry.Value))...)
	}
}
