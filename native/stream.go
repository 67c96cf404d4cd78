package native

import "context"

// StreamItem is one event delivered by a native stream.
type StreamItem interface {
	// IsOk is false for items the producer tagged as failed.
	IsOk() bool
	// Parsed returns the raw partial value carried by the item.
	Parsed() any
}

// StreamHandle is a push-style stream: events arrive through the OnEvent
// callback while production runs, and Done blocks until production finishes
// and returns the final aggregated value.
//
// Every event must be delivered before Done returns.
type StreamHandle interface {
	OnEvent(callback func(err error, item StreamItem))
	Done(ctx context.Context) (any, error)
}
