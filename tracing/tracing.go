package tracing

import (
	"context"

	"github.com/amp-labs/llmtrace/native"
	"github.com/amp-labs/llmtrace/zero"
)

// Func is the shape of a function Trace can wrap. args are recorded as the
// span's inputs, matched against the metadata given with WithArgs.
type Func[T any] func(ctx context.Context, args ...any) (T, error)

// Trace wraps fn so every call produces a span named name.
//
// Each call pushes a child of the current span, records args, and calls fn
// with a context in which the new span is current. A normal return records the
// value and closes the span ok. An error is recorded (message, plus the %+v
// detail minus its first line) and the span closes failed; the error is then
// returned to the caller as the very same value. A panic is recorded the same
// way with native.CodePanic and re-raised with the original panic value.
//
// Example:
//
//	add := tracing.Trace("add", func(ctx context.Context, args ...any) (int, error) {
//	    return args[0].(int) + args[1].(int), nil
//	}, tracing.WithArgs(
//	    native.ArgMetadata{Name: "a", Type: "int"},
//	    native.ArgMetadata{Name: "b", Type: "int"},
//	), tracing.WithReturnType("int"))
//
//	sum, err := add(ctx, 1, 2) // 3, nil
func Trace[T any](name string, fn Func[T], opts ...Option) Func[T] {
	r := newRunner(name, opts...)

	return func(ctx context.Context, args ...any) (T, error) {
		if fn == nil {
			return zero.Value[T](), nil
		}

		return invoke(ctx, r, args, func(ctx context.Context, _ native.Span) (T, error) {
			return fn(ctx, args...)
		})
	}
}

// Trace1 is Trace for a function of one argument, keeping its signature.
func Trace1[A, R any](
	name string, fn func(ctx context.Context, a A) (R, error), opts ...Option,
) func(ctx context.Context, a A) (R, error) {
	r := newRunner(name, opts...)

	return func(ctx context.Context, a A) (R, error) {
		if fn == nil {
			return zero.Value[R](), nil
		}

		return invoke(ctx, r, []any{a}, func(ctx context.Context, _ native.Span) (R, error) {
			return fn(ctx, a)
		})
	}
}

// Trace2 is Trace for a function of two arguments, keeping its signature.
func Trace2[A, B, R any](
	name string, fn func(ctx context.Context, a A, b B) (R, error), opts ...Option,
) func(ctx context.Context, a A, b B) (R, error) {
	r := newRunner(name, opts...)

	return func(ctx context.Context, a A, b B) (R, error) {
		if fn == nil {
			return zero.Value[R](), nil
		}

		return invoke(ctx, r, []any{a, b}, func(ctx context.Context, _ native.Span) (R, error) {
			return fn(ctx, a, b)
		})
	}
}
