// Package native describes the runtime that owns spans and streams.
//
// The tracing, events and stream packages never store span data themselves.
// They hold Span handles and forward inputs, outputs, errors, tags and events
// to a Runtime, which decides how to record and export them. Two runtimes ship
// with this module: native/memory keeps the span tree in process, and
// native/otelnative turns spans into OpenTelemetry spans.
//
// A Runtime is installed in a context with WithRuntime; everything downstream
// of that context records into it.
package native
