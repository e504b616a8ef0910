package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one service operation. Its lines share the trace id of the
// request and name the operation they belong to.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	attrs  []any
	err    error
}

// StartSpan opens a span named name below whatever span ctx already carries.
// A trace id is minted when ctx has none.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)
	parent := metaFrom(ctx)

	traceID := parent.traceID
	if traceID == "" {
		traceID = uuid.NewString()
		logger = logger.With(slog.String("trace_id", traceID))
	}
	spanID := uuid.NewString()

	logger = logger.With(slog.String("span", name), slog.String("span_id", spanID))
	if parent.spanID != "" {
		logger = logger.With(slog.String("parent_span_id", parent.spanID))
	}

	ctx = withMeta(ctx, func(m *meta) {
		m.traceID = traceID
		m.spanID = spanID
	})
	ctx = WithLogger(ctx, logger)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// SetAttrs adds key/value pairs to the completion line.
func (s *Span) SetAttrs(args ...any) {
	if s == nil {
		return
	}
	s.attrs = append(s.attrs, args...)
}

// Fail marks the span as failed with err.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
}

// End emits the completion line. Successful spans log at debug level, failed
// ones at warn.
func (s *Span) End() {
	if s == nil {
		return
	}
	args := append([]any{slog.Duration("duration", time.Since(s.start))}, s.attrs...)
	if s.err != nil {
		s.logger.Warn("span failed", append(args, slog.Any("error", s.err))...)
		return
	}
	s.logger.Debug("span completed", args...)
}
