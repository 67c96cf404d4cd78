// Package future provides a Future/Promise pair for values produced by another goroutine.
//
// A Future is the read side: any number of goroutines may Await it or register
// callbacks on it. A Promise is the write side and completes the Future exactly once.
// Futures cannot be canceled. AwaitContext lets a waiter stop waiting, but the
// computation behind the Future keeps running.
package future

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/amp-labs/llmtrace/try"
	"github.com/amp-labs/llmtrace/utils"
)

// Future is the read-only side of an asynchronous computation.
type Future[T any] struct {
	once        sync.Once
	result      try.Try[T]
	resultReady chan struct{}

	mu               sync.Mutex
	successCallbacks []func(T)
	errorCallbacks   []func(error)
	resultCallbacks  []func(try.Try[T])
}

// New creates an unfulfilled future together with the promise that completes it.
//
// Example:
//
//	fut, promise := future.New[int]()
//	go func() { promise.Complete(compute()) }()
//	value, err := fut.Await()
func New[T any]() (*Future[T], *Promise[T]) {
	fut := &Future[T]{
		resultReady: make(chan struct{}),
	}

	return fut, &Promise[T]{future: fut}
}

// Settled returns a future that is already complete with the given value or error.
func Settled[T any](value T, err error) *Future[T] {
	fut, promise := New[T]()
	promise.Complete(value, err)

	return fut
}

// Go runs f in a new goroutine and returns a future for its result.
// A panic inside f is recovered and surfaces as an error wrapping errors.ErrPanicRecovery.
func Go[T any](f func() (T, error)) *Future[T] {
	fut, promise := New[T]()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				promise.Failure(utils.GetPanicRecoveryError(r, debug.Stack()))
			}
		}()

		promise.Complete(f())
	}()

	return fut
}

// GoContext is Go for functions that take a context. The context is handed to f
// unchanged; whether f honors cancellation is up to f.
func GoContext[T any](ctx context.Context, f func(ctx context.Context) (T, error)) *Future[T] {
	return Go(func() (T, error) {
		return f(ctx)
	})
}

// Map derives a future whose value is fn applied to the source value.
// Source errors pass through untouched and fn is not called.
func Map[A any, B any](source *Future[A], fn func(A) (B, error)) *Future[B] {
	out, promise := New[B]()

	source.OnResult(func(result try.Try[A]) {
		promise.Complete(try.Map(result, fn).Get())
	})

	return out
}

// Done returns a channel that is closed once the future is complete.
func (f *Future[T]) Done() <-chan struct{} {
	return f.resultReady
}

// IsDone reports whether the future has completed, without blocking.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.resultReady:
		return true
	default:
		return false
	}
}

// Await blocks until the future completes and returns its value and error.
func (f *Future[T]) Await() (T, error) { //nolint:ireturn
	<-f.resultReady

	return f.result.Get()
}

// AwaitContext blocks until the future completes or ctx is done, whichever
// happens first. Giving up on the wait does not stop the computation.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) { //nolint:ireturn
	if ctx == nil {
		return f.Await()
	}

	select {
	case <-f.resultReady:
		return f.result.Get()
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	}
}

// OnSuccess registers a callback invoked with the value if the future succeeds.
// Callbacks run in their own goroutine; registering after completion invokes immediately.
func (f *Future[T]) OnSuccess(callback func(T)) {
	f.register(func(result try.Try[T]) {
		if result.IsSuccess() {
			invokeCallback("OnSuccess", callback, result.Value)
		}
	}, func() { f.successCallbacks = append(f.successCallbacks, callback) })
}

// OnError registers a callback invoked with the error if the future fails.
func (f *Future[T]) OnError(callback func(error)) {
	f.register(func(result try.Try[T]) {
		if result.IsFailure() {
			invokeCallback("OnError", callback, result.Error)
		}
	}, func() { f.errorCallbacks = append(f.errorCallbacks, callback) })
}

// OnResult registers a callback invoked with the settled result either way.
func (f *Future[T]) OnResult(callback func(try.Try[T])) {
	f.register(func(result try.Try[T]) {
		invokeCallback("OnResult", callback, result)
	}, func() { f.resultCallbacks = append(f.resultCallbacks, callback) })
}

// register either queues a callback (future still pending) or fires it right
// away. The mutex makes the check and the append atomic with fulfill's
// close-and-collect, so no callback is lost or invoked twice.
func (f *Future[T]) register(fireNow func(try.Try[T]), enqueue func()) {
	f.mu.Lock()

	select {
	case <-f.resultReady:
		f.mu.Unlock()
		fireNow(f.result)
	default:
		enqueue()
		f.mu.Unlock()
	}
}
