package tracing

import (
	"context"

	"github.com/amp-labs/llmtrace/native"
	"github.com/amp-labs/llmtrace/zero"
)

// Start creates an orchestrator for a block that returns nothing.
//
// The block runs inside a span if the context carries a runtime, and runs
// normally otherwise. span is nil in that case.
//
// Example:
//
//	tracing.Start(ctx, "render-prompt").Enter(func(ctx context.Context, span native.Span) {
//	    events.LogEvent(ctx, events.PromptTemplateRendered{...})
//	})
func Start(ctx context.Context, name string, opts ...Option) *StartOrchestrator {
	return &StartOrchestrator{ctx: ctx, runner: newRunner(name, opts...)}
}

// StartErr creates an orchestrator for a block that can fail.
//
// Example:
//
//	err := tracing.StartErr(ctx, "validate-input",
//	    tracing.WithErrorMessage("validation failed"),
//	).Enter(func(ctx context.Context, span native.Span) error {
//	    return validate(input)
//	})
func StartErr(ctx context.Context, name string, opts ...Option) *StartErrorOrchestrator {
	return &StartErrorOrchestrator{ctx: ctx, runner: newRunner(name, opts...)}
}

// StartVal creates an orchestrator for a block that produces a value and cannot fail.
func StartVal[Value any](ctx context.Context, name string, opts ...Option) *StartValueOrchestrator[Value] {
	return &StartValueOrchestrator[Value]{ctx: ctx, runner: newRunner(name, opts...)}
}

// StartValErr creates an orchestrator for a block that produces a value or fails.
// This is the most common shape for a call out to a model provider.
//
// Example:
//
//	reply, err := tracing.StartValErr[string](ctx, "chat",
//	    tracing.WithReturnType("string"),
//	).Enter(func(ctx context.Context, span native.Span) (string, error) {
//	    return client.Chat(ctx, prompt)
//	})
func StartValErr[Value any](
	ctx context.Context, name string, opts ...Option,
) *StartValueErrorOrchestrator[Value] {
	return &StartValueErrorOrchestrator[Value]{ctx: ctx, runner: newRunner(name, opts...)}
}

// StartOrchestrator runs a block that returns nothing. Create via tracing.Start().
type StartOrchestrator struct {
	ctx    context.Context //nolint:containedctx
	runner *runner
}

// Enter runs f. Panics are recorded on the span and re-raised.
func (o *StartOrchestrator) Enter(f func(ctx context.Context, span native.Span)) {
	if f == nil {
		return
	}

	_, _ = invoke(o.ctx, o.runner, nil, func(ctx context.Context, span native.Span) (struct{}, error) {
		f(ctx, span)

		return struct{}{}, nil
	})
}

// StartErrorOrchestrator runs a block that returns an error. Create via tracing.StartErr().
type StartErrorOrchestrator struct {
	ctx    context.Context //nolint:containedctx
	runner *runner
}

// Enter runs f and returns its error unchanged.
func (o *StartErrorOrchestrator) Enter(f func(ctx context.Context, span native.Span) error) error {
	if f == nil {
		return nil
	}

	_, err := invoke(o.ctx, o.runner, nil, func(ctx context.Context, span native.Span) (struct{}, error) {
		return struct{}{}, f(ctx, span)
	})

	return err
}

// StartValueOrchestrator runs a block that returns a value. Create via tracing.StartVal().
type StartValueOrchestrator[T any] struct {
	ctx    context.Context //nolint:containedctx
	runner *runner
}

// Enter runs f and returns its value.
func (o *StartValueOrchestrator[T]) Enter(f func(ctx context.Context, span native.Span) T) T {
	if f == nil {
		return zero.Value[T]()
	}

	value, _ := invoke(o.ctx, o.runner, nil, func(ctx context.Context, span native.Span) (T, error) {
		return f(ctx, span), nil
	})

	return value
}

// StartValueErrorOrchestrator runs a block that returns a value and an error.
// Create via tracing.StartValErr().
type StartValueErrorOrchestrator[T any] struct {
	ctx    context.Context //nolint:containedctx
	runner *runner
}

// Enter runs f and returns its value and error unchanged.
func (o *StartValueErrorOrchestrator[T]) Enter(f func(ctx context.Context, span native.Span) (T, error)) (T, error) {
	if f == nil {
		return zero.Value[T](), nil
	}

	return invoke(o.ctx, o.runner, nil, f)
}
