// Package stream turns a push-style native stream into a pull-style sequence.
//
// A native.StreamHandle delivers partial items through a callback while a
// provider call is running and hands back the final aggregated value from
// Done. Bridge runs that handle in the background exactly once and exposes
// the partial items as an iter.Seq and the final value as FinalResult.
//
// Example:
//
//	bridge := stream.New(handle, stream.As[string](), stream.As[string]())
//
//	for partial := range bridge.Consume(ctx) {
//	    fmt.Print(partial)
//	}
//
//	final, err := bridge.FinalResult(ctx)
package stream

import (
	"context"
	"iter"

	"github.com/amp-labs/llmtrace/assert"
	"github.com/amp-labs/llmtrace/channels"
	"github.com/amp-labs/llmtrace/contexts"
	"github.com/amp-labs/llmtrace/future"
	"github.com/amp-labs/llmtrace/lazy"
	"github.com/amp-labs/llmtrace/logger"
	"github.com/amp-labs/llmtrace/native"
	"github.com/amp-labs/llmtrace/zero"
	"go.uber.org/atomic"
)

// Coerce converts a raw value produced by the native stream into T.
type Coerce[T any] func(raw any) (T, error)

// As is the Coerce for streams whose raw values already have type T.
func As[T any]() Coerce[T] {
	return assert.Type[T]
}

// Stats counts what happened to the items the native stream delivered.
type Stats struct {
	// Delivered items were coerced and queued for consumers.
	Delivered int64
	// Failed items carried an error or were tagged as failed by the producer.
	Failed int64
	// Malformed items could not be coerced.
	Malformed int64
	// Late items arrived after the stream had finished.
	Late int64
}

// Bridge exposes one native stream as a sequence of partial values plus a
// final value. It is safe for concurrent use.
//
// The native stream is driven at most once, by whichever of Consume or
// FinalResult is called first. Partial values are handed out once: all
// iterations of Consume share one queue, so a value read by one iteration is
// gone for the others, and iterating after the stream ended yields nothing.
type Bridge[T any] struct {
	handle  native.StreamHandle
	partial Coerce[T]
	final   Coerce[T]

	// queue is created by drive, so an unstarted bridge holds nothing.
	queue *channels.Queue[T]

	driver *lazy.OfCtx[*future.Future[any]]

	delivered *atomic.Int64
	failed    *atomic.Int64
	malformed *atomic.Int64
	late      *atomic.Int64
}

// New creates a bridge over handle. partial converts each delivered item, final
// converts the value returned by Done. Nothing runs until Consume or
// FinalResult is called.
func New[T any](handle native.StreamHandle, partial, final Coerce[T]) *Bridge[T] {
	b := &Bridge[T]{
		handle:    handle,
		partial:   partial,
		final:     final,
		delivered: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
		malformed: atomic.NewInt64(0),
		late:      atomic.NewInt64(0),
	}

	b.driver = lazy.NewCtx[*future.Future[any]](b.drive)

	return b
}

// drive subscribes to the native stream and waits for Done in the background.
// It runs on a detached copy of ctx: values such as the logger and the current
// span carry over, but nothing the caller does can cancel the native stream.
func (b *Bridge[T]) drive(ctx context.Context) *future.Future[any] {
	driverCtx := contexts.Detach(ctx)
	queue := channels.NewQueue[T]()
	b.queue = queue

	return future.Go(func() (any, error) {
		// Consumers must see the end of the sequence even if Done panics.
		defer queue.Close()

		b.handle.OnEvent(func(err error, item native.StreamItem) {
			b.onEvent(driverCtx, queue, err, item)
		})

		return b.handle.Done(driverCtx)
	})
}

func (b *Bridge[T]) onEvent(ctx context.Context, queue *channels.Queue[T], err error, item native.StreamItem) {
	if queue.Closed() {
		b.dropLate(ctx)

		return
	}

	if err != nil || item == nil || !item.IsOk() {
		b.failed.Inc()
		itemsCounter.WithLabelValues(outcomeFailed).Inc()

		return
	}

	value, coerceErr := b.partial(item.Parsed())
	if coerceErr != nil {
		b.malformed.Inc()
		itemsCounter.WithLabelValues(outcomeMalformed).Inc()
		logger.Get(ctx).Debug("stream item could not be coerced", "error", coerceErr)

		return
	}

	if !queue.Push(value) {
		b.dropLate(ctx)

		return
	}

	b.delivered.Inc()
	itemsCounter.WithLabelValues(outcomeDelivered).Inc()
}

func (b *Bridge[T]) dropLate(ctx context.Context) {
	b.late.Inc()
	itemsCounter.WithLabelValues(outcomeLate).Inc()
	logger.Get(ctx).Debug("stream item arrived after the stream finished")
}

// start launches the driver if it is not running yet and returns its future.
func (b *Bridge[T]) start(ctx context.Context) *future.Future[any] {
	return b.driver.Get(ctx)
}

// Consume returns the partial values in the order the native stream delivered
// them. The sequence ends when the native stream finishes, whether or not it
// succeeded; only FinalResult reports the failure. It also ends early if ctx
// is done, in which case the native stream keeps running.
func (b *Bridge[T]) Consume(ctx context.Context) iter.Seq[T] {
	ctx = contexts.EnsureContext(ctx)

	return func(yield func(T) bool) {
		b.start(ctx)

		for {
			value, ok := b.queue.Next(ctx)
			if !ok || !yield(value) {
				return
			}
		}
	}
}

// FinalResult waits for the native stream to finish and returns its final
// value converted with the final Coerce. It returns ctx.Err() if ctx is done
// first; the native stream keeps running.
func (b *Bridge[T]) FinalResult(ctx context.Context) (T, error) {
	ctx = contexts.EnsureContext(ctx)

	raw, err := b.start(ctx).AwaitContext(ctx)
	if err != nil {
		return zero.Value[T](), err
	}

	return b.final(raw)
}

// Stats returns a snapshot of the item counters.
func (b *Bridge[T]) Stats() Stats {
	return Stats{
		Delivered: b.delivered.Load(),
		Failed:    b.failed.Load(),
		Malformed: b.malformed.Load(),
		Late:      b.late.Load(),
	}
}
