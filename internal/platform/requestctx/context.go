package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerContextKey contextKey = "github.com/cf-error-page/editor/internal/platform/requestctx/logger"
	traceContextKey  contextKey = "github.com/cf-error-page/editor/internal/platform/requestctx/trace"
	edgeContextKey   contextKey = "github.com/cf-error-page/editor/internal/platform/requestctx/edge"
)

var noopLogger = zap.NewNop()

// TraceInfo captures trace metadata propagated through request context.
type TraceInfo struct {
	TraceID string
	SpanID  string
	Sampled bool
}

// EdgeInfo describes what the fronting edge network told us about the request.
type EdgeInfo struct {
	// RayHeader is the raw Cf-Ray header, untruncated.
	RayHeader string
	// RemoteAddr is the client address after proxy normalisation, without port.
	RemoteAddr string
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

// WithTrace stores the trace metadata on the context for downstream usage.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceContextKey, info)
}

// Trace retrieves the trace metadata from context when available.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceContextKey).(TraceInfo)
	return info, ok
}

// TraceID extracts the trace identifier from context when present.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithEdge stores edge metadata on the context.
func WithEdge(ctx context.Context, info EdgeInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, edgeContextKey, info)
}

// Edge returns edge metadata recorded for the request.
func Edge(ctx context.Context) (EdgeInfo, bool) {
	if ctx == nil {
		return EdgeInfo{}, false
	}
	info, ok := ctx.Value(edgeContextKey).(EdgeInfo)
	return info, ok
}
