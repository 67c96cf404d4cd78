// Package tracing wraps functions so every call is recorded as a span.
//
// A runtime must be installed in the context with native.WithRuntime. Calls made
// without one run untraced. The span tree follows the context: a traced call
// pushes its span onto the stack carried by ctx, so traced functions called with
// the context they received become its children.
//
// There are three ways in:
//   - Trace, Trace1, Trace2: wrap a synchronous function once, call it many times
//   - TraceAsync, Go: the same for functions that hand back a *future.Future
//   - Start, StartErr, StartVal, StartValErr: trace an inline block of code
//
// Usage example:
//
//	add := tracing.Trace2("add", func(ctx context.Context, a, b int) (int, error) {
//	    return a + b, nil
//	}, tracing.WithArgs(
//	    native.ArgMetadata{Name: "a", Type: "int"},
//	    native.ArgMetadata{Name: "b", Type: "int"},
//	), tracing.WithReturnType("int"))
//
//	ctx = native.WithRuntime(ctx, memory.New())
//	sum, err := add(ctx, 1, 2)
package tracing
