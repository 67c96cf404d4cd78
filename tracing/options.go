package tracing

import (
	"context"

	"github.com/amp-labs/llmtrace/native"
)

// Option is a function that configures a runner.
// Options are applied once, when a function is wrapped or an orchestrator is created.
type Option func(*runner)

// WithArgs declares the parameters of the wrapped function, in order. The
// names key recorded inputs when WithKwargs(true) is set, and the types are
// passed to the runtime alongside the values.
//
// Example:
//
//	tracing.Trace2("add", add, tracing.WithArgs(
//	    native.ArgMetadata{Name: "a", Type: "int"},
//	    native.ArgMetadata{Name: "b", Type: "int"},
//	))
func WithArgs(args ...native.ArgMetadata) Option {
	return func(r *runner) {
		r.args = append(r.args, args...)
	}
}

// WithKwargs records inputs as a record keyed by parameter name instead of a
// positional list.
func WithKwargs(asKwargs bool) Option {
	return func(r *runner) {
		r.asKwargs = asKwargs
	}
}

// WithReturnType sets the type tag recorded with the output.
func WithReturnType(returnType string) Option {
	return func(r *runner) {
		r.returnType = returnType
	}
}

// WithName overrides the span name given to Trace/TraceAsync/Start*.
func WithName(name string) Option {
	return func(r *runner) {
		r.name = name
	}
}

// WithTags sets tags on the span as soon as it opens. Calls to
// events.SetTags made during the call can override or delete them.
func WithTags(tags map[string]string) Option {
	return func(r *runner) {
		if r.tags == nil {
			r.tags = make(native.Tags, len(tags))
		}

		for k, v := range tags {
			r.tags[k] = someTag(v)
		}
	}
}

// WithErrorMessage sets a prefix for the error message recorded on the span.
//
// The error returned to the caller is never changed. Only the recorded message
// reads "prefix: error message".
//
// Example:
//
//	tracing.Trace("fetch-user", fetch, tracing.WithErrorMessage("user fetch failed"))
func WithErrorMessage(description string) Option {
	return func(r *runner) {
		r.failure = description
	}
}

// WithSpanDecorator registers a function to run right after the span opens and
// its inputs are recorded, before the wrapped function is called. The context
// it receives has the new span as the current span.
//
// Multiple decorators can be registered and will be executed in order.
//
// Example:
//
//	tracing.Trace("handle", handle,
//	    tracing.WithSpanDecorator(func(ctx context.Context, span native.Span) {
//	        events.SetTag(ctx, "request_id", requestID)
//	    }),
//	)
func WithSpanDecorator(decorator func(ctx context.Context, span native.Span)) Option {
	return func(r *runner) {
		r.decorate = append(r.decorate, decorator)
	}
}
