package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerContextKey contextKey = "github.com/roasworks/attribution/internal/platform/requestctx/logger"
	runContextKey    contextKey = "github.com/roasworks/attribution/internal/platform/requestctx/run"
)

var noopLogger = zap.NewNop()

// RunInfo identifies one attribution run flowing through the pipeline.
type RunInfo struct {
	RunID       string
	UserID      string
	Date        string
	AdAccountID string
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// Logger retrieves the zap logger from context or returns a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noopLogger
	}
	if logger, ok := ctx.Value(loggerContextKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger exposes the shared noop logger instance used across the package.
func NoopLogger() *zap.Logger { return noopLogger }

// WithRun stores the run metadata on the context for downstream usage.
func WithRun(ctx context.Context, info RunInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runContextKey, info)
}

// Run retrieves the run metadata from context when available.
func Run(ctx context.Context) (RunInfo, bool) {
	if ctx == nil {
		return RunInfo{}, false
	}
	info, ok := ctx.Value(runContextKey).(RunInfo)
	if !ok {
		return RunInfo{}, false
	}
	return info, true
}

// RunID extracts the run identifier from context when present.
func RunID(ctx context.Context) string {
	info, ok := Run(ctx)
	if !ok {
		return ""
	}
	return info.RunID
}
