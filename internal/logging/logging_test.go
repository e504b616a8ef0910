package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger")
	}
}

func TestMetadataDoesNotLeakToParent(t *testing.T) {
	parent := WithRequestID(context.Background(), "req-1")
	child := WithTraceID(parent, "trace-1")

	if RequestIDFromContext(child) != "req-1" || TraceIDFromContext(child) != "trace-1" {
		t.Fatalf("unexpected child metadata %q/%q", RequestIDFromContext(child), TraceIDFromContext(child))
	}
	if TraceIDFromContext(parent) != "" {
		t.Fatal("expected parent to be unchanged")
	}
}

func TestWithUserIDEnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), newBufferLogger(&buf))
	ctx = WithUserID(ctx, "u-1")

	FromContext(ctx).Info("hello")

	if UserIDFromContext(ctx) != "u-1" {
		t.Fatalf("unexpected user id %q", UserIDFromContext(ctx))
	}
	if !strings.Contains(buf.String(), `"user_id":"u-1"`) {
		t.Fatalf("expected user id in log line, got %s", buf.String())
	}
}

func TestStartSpanNestsUnderTrace(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), newBufferLogger(&buf))

	outerCtx, outer := StartSpan(ctx, "outer")
	innerCtx, inner := StartSpan(outerCtx, "inner")

	if TraceIDFromContext(outerCtx) == "" || TraceIDFromContext(innerCtx) != TraceIDFromContext(outerCtx) {
		t.Fatal("expected spans to share one trace id")
	}
	if SpanIDFromContext(innerCtx) == SpanIDFromContext(outerCtx) {
		t.Fatal("expected distinct span ids")
	}

	inner.SetAttrs("rows", 2)
	inner.End()

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["span"] != "inner" || line["parent_span_id"] != SpanIDFromContext(outerCtx) || line["rows"] != float64(2) {
		t.Fatalf("unexpected span line %v", line)
	}
	if line["level"] != "DEBUG" {
		t.Fatalf("expected debug completion, got %v", line["level"])
	}

	buf.Reset()
	outer.Fail(errors.New("boom"))
	outer.End()
	if !strings.Contains(buf.String(), `"level":"WARN"`) || !strings.Contains(buf.String(), "boom") {
		t.Fatalf("expected failed span at warn, got %s", buf.String())
	}
}

func TestNilSpanIsSafe(t *testing.T) {
	var span *Span
	span.SetAttrs("a", 1)
	span.Fail(errors.New("x"))
	span.End()
}
