package tracing

import (
	"context"

	"github.com/amp-labs/llmtrace/errors"
	"github.com/amp-labs/llmtrace/future"
	"github.com/amp-labs/llmtrace/try"
	"github.com/amp-labs/llmtrace/zero"
)

// AsyncFunc is the shape of an asynchronous function TraceAsync can wrap.
type AsyncFunc[T any] func(ctx context.Context, args ...any) *future.Future[T]

// TraceAsync wraps fn so every call produces a span that stays open until the
// future fn returns has settled.
//
// The span is pushed onto a context derived from the caller's, and fn runs with
// that context. Concurrent calls therefore never see each other's span, even
// when they overlap in time. When fn's future settles, the value or error is
// recorded, the span is closed, and the returned future completes with exactly
// the same value or error. No goroutine is added between the caller and fn.
//
// A nil future from fn fails the call with errors.ErrNilFuture, traced or not. A panic while
// fn is building its future is recorded and re-raised, as in Trace.
func TraceAsync[T any](name string, fn AsyncFunc[T], opts ...Option) AsyncFunc[T] {
	r := newRunner(name, opts...)

	return func(ctx context.Context, args ...any) *future.Future[T] {
		if fn == nil {
			return future.Settled(zero.Value[T](), nil)
		}

		spanCtx, active, ok := r.open(ctx, args)
		if !ok {
			if inner := fn(ctx, args...); inner != nil {
				return inner
			}

			return future.Settled(zero.Value[T](), errors.ErrNilFuture)
		}

		inner := startAsync(spanCtx, active, fn, args)
		if inner == nil {
			active.fail(errors.ErrNilFuture)

			return future.Settled(zero.Value[T](), errors.ErrNilFuture)
		}

		out, promise := future.New[T]()

		inner.OnResult(func(result try.Try[T]) {
			if result.IsFailure() {
				active.fail(result.Error)
			} else {
				active.succeed(result.Value)
			}

			promise.Complete(result.Value, result.Error)
		})

		return out
	}
}

// startAsync calls fn under the span's panic guard. Only the synchronous part
// of fn is covered; failures after that arrive through the future.
func startAsync[T any](
	ctx context.Context, active *activeSpan, fn AsyncFunc[T], args []any,
) *future.Future[T] {
	defer active.recoverAndRepanic()

	active.decorate(ctx)

	return fn(ctx, args...)
}

// Go runs f in a new goroutine inside a span named name and returns a future
// for its result. A panic inside f fails the future (and the span) with an
// error wrapping errors.ErrPanicRecovery.
//
// Example:
//
//	fut := tracing.Go(ctx, "fetch-profile", func(ctx context.Context) (Profile, error) {
//	    return client.Profile(ctx, id)
//	})
//	profile, err := fut.Await()
func Go[T any](
	ctx context.Context, name string, f func(ctx context.Context) (T, error), opts ...Option,
) *future.Future[T] {
	traced := TraceAsync(name, func(ctx context.Context, _ ...any) *future.Future[T] {
		return future.GoContext(ctx, f)
	}, opts...)

	return traced(ctx)
}
