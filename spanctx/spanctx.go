// Package spanctx tracks the stack of open spans for a logical thread of execution.
//
// The stack lives in a context.Context as an immutable linked list. Pushing a
// span returns a derived context, so a goroutine started from a context sees
// the stack as it was at that moment and never observes spans pushed by its
// siblings. Spans are opened here but never closed; closing belongs to
// whoever pushed them.
package spanctx

import (
	"context"

	"github.com/amp-labs/llmtrace/contexts"
	"github.com/amp-labs/llmtrace/errors"
	"github.com/amp-labs/llmtrace/logger"
	"github.com/amp-labs/llmtrace/native"
)

type contextKey string

const stackKey contextKey = "spanStack"

type frame struct {
	span   native.Span
	parent *frame
	depth  int

	// outer is the context Push was called with.
	outer context.Context //nolint:containedctx
}

func top(ctx context.Context) *frame {
	f, ok := contexts.GetValue[contextKey, *frame](ctx, stackKey)
	if !ok {
		return nil
	}

	return f
}

// Current returns the innermost open span. Having no span is a valid state.
func Current(ctx context.Context) (native.Span, bool) {
	f := top(ctx)
	if f == nil {
		return nil, false
	}

	return f.span, true
}

// PushChild opens a span named name through the runtime installed in ctx. The
// parent is the current span, or none for a root span. The returned context
// has the new span on top of the stack; ctx itself is unchanged.
func PushChild(ctx context.Context, name string) (context.Context, native.Span, error) {
	ctx = contexts.EnsureContext(ctx)

	rt, ok := native.RuntimeFromContext(ctx)
	if !ok || rt == nil {
		return ctx, nil, errors.ErrNoRuntime
	}

	parent, _ := Current(ctx)

	span := rt.CreateChildSpan(ctx, name, parent)

	return Push(ctx, span), span, nil
}

// Push places an already-open span on top of the stack.
func Push(ctx context.Context, span native.Span) context.Context {
	ctx = contexts.EnsureContext(ctx)

	f := &frame{span: span, parent: top(ctx), depth: 1, outer: ctx}
	if f.parent != nil {
		f.depth = f.parent.depth + 1
	}

	derived := logger.WithSpan(ctx, span.ID(), span.Name())

	return contexts.WithValue[contextKey, *frame](derived, stackKey, f)
}

// Pop returns the context the top span was pushed onto. The span is not closed.
// Popping an empty stack returns ctx unchanged.
func Pop(ctx context.Context) context.Context {
	f := top(ctx)
	if f == nil {
		return ctx
	}

	return f.outer
}

// Depth is the number of spans on the stack.
func Depth(ctx context.Context) int {
	f := top(ctx)
	if f == nil {
		return 0
	}

	return f.depth
}

// Stack lists the open spans from the root to the current one.
func Stack(ctx context.Context) []native.Span {
	f := top(ctx)
	if f == nil {
		return nil
	}

	out := make([]native.Span, f.depth)
	for i := f.depth - 1; f != nil; i, f = i-1, f.parent {
		out[i] = f.span
	}

	return out
}
