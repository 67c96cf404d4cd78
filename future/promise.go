package future

import (
	"github.com/amp-labs/llmtrace/try"
)

// Promise represents the write-only side of an asynchronous computation.
//
// Key guarantees:
//   - A promise can only be fulfilled once (enforced by sync.Once in the future)
//   - Multiple calls to Success/Failure/Complete are safe (later calls are ignored)
//   - Fulfillment is thread-safe and can happen from any goroutine
//   - Fulfilling a promise unblocks all goroutines waiting on the associated future
//
// The promise holds a reference to the future, not the other way around, so futures
// can be passed around without exposing the ability to complete them.
type Promise[T any] struct {
	future *Future[T]
}

// Future returns the read side this promise completes.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// fulfill stores the result, closes resultReady to wake every waiter and then
// invokes the registered callbacks. The mutex is held while closing the channel
// so callback registration cannot slip between the close and the collection.
func (p *Promise[T]) fulfill(result try.Try[T]) {
	p.future.once.Do(func() {
		p.future.result = result

		p.future.mu.Lock()

		close(p.future.resultReady)

		successCallbacks := p.future.successCallbacks
		errorCallbacks := p.future.errorCallbacks
		resultCallbacks := p.future.resultCallbacks

		// Callbacks only ever fire once; drop them so the GC can reclaim their closures.
		p.future.successCallbacks = nil
		p.future.errorCallbacks = nil
		p.future.resultCallbacks = nil

		p.future.mu.Unlock()

		for _, callback := range resultCallbacks {
			invokeCallback("OnResult", callback, result)
		}

		if result.Error == nil {
			for _, callback := range successCallbacks {
				invokeCallback("OnSuccess", callback, result.Value)
			}
		} else {
			for _, callback := range errorCallbacks {
				invokeCallback("OnError", callback, result.Error)
			}
		}
	})
}

// Success fulfills the promise with a successful value.
func (p *Promise[T]) Success(value T) {
	p.fulfill(try.Try[T]{Value: value})
}

// Failure fulfills the promise with an error. The stored value is the zero value of T.
func (p *Promise[T]) Failure(err error) {
	var zero T

	p.fulfill(try.Try[T]{Value: zero, Error: err})
}

// Complete fulfills the promise from a (value, error) pair: Failure when err is
// non-nil, Success otherwise.
func (p *Promise[T]) Complete(value T, err error) {
	if err != nil {
		p.Failure(err)
	} else {
		p.Success(value)
	}
}
