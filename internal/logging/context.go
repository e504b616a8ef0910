// Package logging carries a request-scoped slog.Logger and the identifiers
// that correlate log lines of one request.
package logging

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	loggerKey contextKey = iota
	metaKey
)

// meta holds the correlation identifiers of a request. It is copied on every
// write so parent contexts never observe child changes.
type meta struct {
	requestID string
	traceID   string
	spanID    string
	userID    string
}

func metaFrom(ctx context.Context) meta {
	if ctx == nil {
		return meta{}
	}
	m, _ := ctx.Value(metaKey).(meta)
	return m
}

func withMeta(ctx context.Context, update func(*meta)) context.Context {
	m := metaFrom(ctx)
	update(&m)
	return context.WithValue(ctx, metaKey, m)
}

// WithLogger stores the provided logger on the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the request-scoped logger or falls back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithRequestID stores a request identifier on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.requestID = requestID })
}

// RequestIDFromContext retrieves a previously stored request identifier.
func RequestIDFromContext(ctx context.Context) string {
	return metaFrom(ctx).requestID
}

// WithTraceID stores a trace identifier on the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if ctx == nil || traceID == "" {
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.traceID = traceID })
}

// TraceIDFromContext retrieves the trace identifier from the context.
func TraceIDFromContext(ctx context.Context) string {
	return metaFrom(ctx).traceID
}

// SpanIDFromContext retrieves the identifier of the innermost open span.
func SpanIDFromContext(ctx context.Context) string {
	return metaFrom(ctx).spanID
}

// WithUserID records the authenticated user on the context and adds it to the
// request logger.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil || userID == "" {
		return ctx
	}
	ctx = withMeta(ctx, func(m *meta) { m.userID = userID })
	return WithLogger(ctx, FromContext(ctx).With(slog.String("user_id", userID)))
}

// UserIDFromContext returns the user recorded by WithUserID.
func UserIDFromContext(ctx context.Context) string {
	return metaFrom(ctx).userID
}
