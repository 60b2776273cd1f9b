package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the service tracer.
const tracerName = "github.com/MrWong99/carecompanion"

// Span attribute keys for conversation scope.
const (
	AttrUserID    = attribute.Key("carecompanion.user_id")
	AttrSessionID = attribute.Key("carecompanion.session_id")
)

type ctxKey int

const (
	correlationKey ctxKey = iota
	conversationKey
)

type conversation struct {
	userID, sessionID string
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on [Tracer]. When ctx carries a conversation set
// by [WithConversation], its IDs are attached as attributes. The caller must
// end the span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if c, ok := ctx.Value(conversationKey).(conversation); ok {
		opts = append(opts, trace.WithAttributes(AttrUserID.String(c.userID), AttrSessionID.String(c.sessionID)))
	}
	return Tracer().Start(ctx, name, opts...)
}

// WithCorrelationID returns a context whose [CorrelationID] is id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationID returns the ID set by [WithCorrelationID], falling back to
// the trace ID of the active span. It is empty when neither exists.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok && id != "" {
		return id
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// WithConversation scopes ctx to one user's chat session. Loggers and spans
// derived from it carry both IDs.
func WithConversation(ctx context.Context, userID, sessionID string) context.Context {
	return context.WithValue(ctx, conversationKey, conversation{userID: userID, sessionID: sessionID})
}

// Logger returns the default logger annotated with whatever request scope
// ctx carries: correlation ID, trace and span IDs, and conversation IDs.
func Logger(ctx context.Context) *slog.Logger {
	var attrs []any
	if id := CorrelationID(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if c, ok := ctx.Value(conversationKey).(conversation); ok {
		attrs = append(attrs, slog.String("user_id", c.userID), slog.String("session_id", c.sessionID))
	}
	if len(attrs) == 0 {
		return slog.Default()
	}
	return slog.Default().With(attrs...)
}
