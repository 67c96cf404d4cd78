package tracing

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/amp-labs/llmtrace/logger"
	"github.com/amp-labs/llmtrace/native"
	"github.com/amp-labs/llmtrace/optional"
	"github.com/amp-labs/llmtrace/spanctx"
	"github.com/amp-labs/llmtrace/utils"
)

// newRunner creates a runner for spans named spanName.
func newRunner(spanName string, opts ...Option) *runner {
	r := &runner{
		name: spanName,
	}

	for _, option := range opts {
		if option != nil {
			option(r)
		}
	}

	return r
}

// runner holds everything that is fixed at wrap time. It is never mutated
// after newRunner returns, so one runner serves concurrent calls.
type runner struct {
	// name is the span name.
	name string
	// args describes the declared parameters, in order.
	args []native.ArgMetadata
	// asKwargs records inputs keyed by parameter name.
	asKwargs bool
	// returnType is the type tag recorded with the output.
	returnType string
	// tags are set on the span when it opens.
	tags native.Tags
	// failure is the custom error message prefix (optional).
	failure string

	// decorate are functions called after the span opens.
	decorate []func(ctx context.Context, span native.Span)
}

// activeSpan is one open span together with the runtime that owns it.
type activeSpan struct {
	runner  *runner
	runtime native.Runtime
	span    native.Span
}

// open pushes a child span and records the call's inputs. It reports false
// when ctx carries no runtime, in which case the call must run untraced.
func (r *runner) open(ctx context.Context, args []any) (context.Context, *activeSpan, bool) {
	rt, found := native.RuntimeFromContext(ctx)
	if !found || rt == nil {
		withoutRuntimeCounter.WithLabelValues(r.name).Inc()

		return ctx, nil, false
	}

	spanCtx, span, err := spanctx.PushChild(ctx, r.name)
	if err != nil {
		withoutRuntimeCounter.WithLabelValues(r.name).Inc()

		return ctx, nil, false
	}

	if len(r.tags) > 0 {
		rt.SetTags(span, r.tags)
	}

	rt.RecordInputs(span, native.Inputs{
		Args:     r.args,
		Values:   args,
		AsKwargs: r.asKwargs,
	})

	return spanCtx, &activeSpan{runner: r, runtime: rt, span: span}, true
}

func (a *activeSpan) decorate(ctx context.Context) {
	for _, decorate := range a.runner.decorate {
		if decorate != nil {
			decorate(ctx, a.span)
		}
	}
}

// succeed records the output and closes the span ok.
func (a *activeSpan) succeed(value any) {
	a.runtime.RecordOutput(a.span, value, a.runner.returnType)
	a.runtime.CloseSpan(a.span)
}

// fail records err and closes the span failed. err itself is left untouched.
func (a *activeSpan) fail(err error) {
	message := err.Error()
	if len(a.runner.failure) > 0 {
		message = fmt.Sprintf("%s: %s", a.runner.failure, message)
	}

	a.runtime.RecordError(a.span, native.CodeError, message, utils.ErrorTrace(err))
	a.runtime.CloseSpan(a.span)
}

// panicked records a recovered panic value and closes the span failed.
func (a *activeSpan) panicked(value any, stack []byte) {
	var message string

	if err, ok := value.(error); ok {
		message = err.Error()
	} else {
		message = fmt.Sprint(value)
	}

	if len(a.runner.failure) > 0 {
		message = fmt.Sprintf("%s: %s", a.runner.failure, message)
	}

	logger.Get().Error("panic in traced call",
		"span_id", a.span.ID(), "span_name", a.span.Name(), "panic", message)

	a.runtime.RecordError(a.span, native.CodePanic, message, utils.DropFirstLine(string(stack)))
	a.runtime.CloseSpan(a.span)
}

// recoverAndRepanic must be deferred directly. It records a panic on the span
// and re-raises the original value.
func (a *activeSpan) recoverAndRepanic() {
	if value := recover(); value != nil {
		a.panicked(value, debug.Stack())

		panic(value)
	}
}

// invoke runs call inside a span if the context carries a runtime. Without a
// runtime, call runs as-is and the without-runtime counter is incremented.
// The value and error returned by call are passed back unchanged.
func invoke[T any](
	ctx context.Context, r *runner, args []any,
	call func(ctx context.Context, span native.Span) (T, error),
) (T, error) {
	spanCtx, active, ok := r.open(ctx, args)
	if !ok {
		return call(ctx, nil)
	}

	defer active.recoverAndRepanic()

	active.decorate(spanCtx)

	value, err := call(spanCtx, active.span)
	if err != nil {
		active.fail(err)
	} else {
		active.succeed(value)
	}

	return value, err
}

func someTag(value string) optional.Value[string] {
	return optional.Some(value)
}
