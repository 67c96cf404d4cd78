package lazy

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/amp-labs/llmtrace/contexts"
)

// OfCtx is a lazy value whose initializer needs a context. Only the context of
// the first Get reaches the initializer; later callers share the result, which
// makes OfCtx a start-once primitive for background work.
type OfCtx[T any] struct {
	create      atomic.Pointer[func(context.Context) T]
	once        atomic.Pointer[sync.Once]
	value       atomic.Pointer[T]
	initialized atomic.Bool
}

// Get returns the value, initializing it with ctx if this is the first call.
// Concurrent first calls block until the single initializer returns.
func (t *OfCtx[T]) Get(ctx context.Context) T { //nolint:ireturn
	once := t.once.Load()
	if once == nil {
		newOnce := &sync.Once{}
		if t.once.CompareAndSwap(nil, newOnce) {
			once = newOnce
		} else {
			once = t.once.Load()
		}
	}

	defer func() {
		if err := recover(); err != nil {
			// Reset the once state on panic so initialization can be retried
			t.once.Store(&sync.Once{})

			panic(err)
		}
	}()

	once.Do(func() {
		createFn := t.create.Load()
		if createFn != nil {
			result := (*createFn)(contexts.EnsureContext(ctx))
			t.value.Store(&result)
			t.initialized.Store(true)
			t.create.Store(nil)
		}
	})

	valPtr := t.value.Load()
	if valPtr != nil {
		return *valPtr
	}

	var zero T

	return zero
}

// Initialized returns true if the value has been initialized.
func (t *OfCtx[T]) Initialized() bool {
	return t.initialized.Load()
}

// NewCtx creates a new lazy value. The callback will be called later, when the
// value is first accessed. The callback includes a context parameter.
func NewCtx[T any](f func(ctx context.Context) T) *OfCtx[T] {
	lazy := &OfCtx[T]{}
	lazy.create.Store(&f)

	return lazy
}
