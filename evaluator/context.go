package evaluator

import (
	"context"
	"maps"
	"time"
)

type systemValuesKey struct{}

type loggerKey struct{}

// WithSystemValue adds a value exposed to expressions as system.<key>.
// Values on the context override the defaults of the EvaluatingQueryContext.
func WithSystemValue(ctx context.Context, key string, value any) context.Context {
	values := make(map[string]any)
	maps.Copy(values, systemValuesFromContext(ctx))

	values[key] = value

	return context.WithValue(ctx, systemValuesKey{}, values)
}

func systemValuesFromContext(ctx context.Context) map[string]any {
	if ctx == nil {
		return nil
	}

	if values, ok := ctx.Value(systemValuesKey{}).(map[string]any); ok {
		return values
	}

	return nil
}

// LoggerFunc receives one EvaluationLogEntry per evaluated expression.
type LoggerFunc func(context.Context, EvaluationLogEntry)

// EvaluationLogEntry describes the evaluation of one expression.
type EvaluationLogEntry struct {
	Query      string
	Name       string
	Expression string
	Value      any
	StartAt    time.Time
	EndAt      time.Time
	Duration   time.Duration
	Error      string
}

// WithLogger stores the evaluation logger on the context.
func WithLogger(ctx context.Context, logger LoggerFunc) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func loggerFromContext(ctx context.Context) LoggerFunc {
	if ctx == nil {
		return nil
	}

	logger, _ := ctx.Value(loggerKey{}).(LoggerFunc)

	return logger
}

// evaluationLogger collects the timing of one expression evaluation.
type evaluationLogger struct {
	logger  LoggerFunc
	startAt time.Time
	entry   EvaluationLogEntry
}

func startEvaluationLog(ctx context.Context, query, name, expression string) *evaluationLogger {
	logger := loggerFromContext(ctx)
	if logger == nil {
		return nil
	}

	return &evaluationLogger{
		logger:  logger,
		startAt: time.Now(),
		entry: EvaluationLogEntry{
			Query:      query,
			Name:       name,
			Expression: expression,
		},
	}
}

func (l *evaluationLogger) write(ctx context.Context, value any, err error) {
	if l == nil {
		return
	}

	entry := l.entry
	entry.Value = value
	entry.StartAt = l.startAt
	entry.EndAt = time.Now()
	entry.Duration = entry.EndAt.Sub(entry.StartAt)

	if err != nil {
		entry.Error = err.Error()
	}

	l.logger(ctx, entry)
}
