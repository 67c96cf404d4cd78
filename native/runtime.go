package native

import (
	"context"

	"github.com/amp-labs/llmtrace/contexts"
	"github.com/amp-labs/llmtrace/optional"
)

// Error codes passed to Runtime.RecordError.
const (
	// CodeError marks a callback that returned (or resolved to) an error.
	CodeError = 1
	// CodePanic marks a callback that panicked.
	CodePanic = 2
)

// SpanState is the finalization state of a span.
type SpanState int

const (
	SpanOpen SpanState = iota
	SpanClosedOK
	SpanClosedError
)

func (s SpanState) String() string {
	switch s {
	case SpanOpen:
		return "open"
	case SpanClosedOK:
		return "closed-ok"
	case SpanClosedError:
		return "closed-error"
	default:
		return "unknown"
	}
}

// Span is an opaque handle to a span owned by a Runtime.
type Span interface {
	ID() string
	// ParentID is empty for root spans.
	ParentID() string
	Name() string
}

// Tags maps tag keys to values; None removes a previously set key.
type Tags map[string]optional.Value[string]

// Event is a structured record attached to a span. Payload is already serialized.
type Event struct {
	Name    string
	Payload []byte
}

// Runtime creates spans and records everything that happens to them.
// Implementations must be safe for concurrent use.
type Runtime interface {
	// CreateChildSpan opens a span named name. A nil parent creates a root span.
	CreateChildSpan(ctx context.Context, name string, parent Span) Span

	RecordInputs(span Span, inputs Inputs)
	RecordOutput(span Span, value any, returnType string)
	RecordError(span Span, code int, message, trace string)

	// CloseSpan finalizes the span: closed-error if RecordError was called,
	// closed-ok otherwise. Closing twice is a no-op.
	CloseSpan(span Span)

	// SetTags merges tags into span. A nil span targets the process-wide tags.
	SetTags(span Span, tags Tags)

	LogEvent(span Span, event Event)
}

type contextKey string

const runtimeKey contextKey = "runtime"

// WithRuntime installs rt in the context. Tracing calls made with the returned
// context (or anything derived from it) record into rt.
func WithRuntime(ctx context.Context, rt Runtime) context.Context {
	return contexts.WithValue[contextKey, Runtime](ctx, runtimeKey, rt)
}

// RuntimeFromContext returns the runtime installed by WithRuntime.
func RuntimeFromContext(ctx context.Context) (Runtime, bool) {
	return contexts.GetValue[contextKey, Runtime](ctx, runtimeKey)
}
