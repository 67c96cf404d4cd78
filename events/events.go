// Package events attaches tags and LLM events to the current span.
//
// Everything here is best effort. Calls that cannot be recorded (no runtime,
// no span, a payload that does not serialize) log a warning and return; they
// never fail the caller.
package events

import (
	"context"
	"encoding/json"

	"github.com/amp-labs/llmtrace/logger"
	"github.com/amp-labs/llmtrace/native"
	"github.com/amp-labs/llmtrace/optional"
	"github.com/amp-labs/llmtrace/spanctx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons used for the dropped-events counter.
const (
	reasonNoRuntime     = "no_runtime"
	reasonNoSpan        = "no_span"
	reasonMarshalFailed = "marshal_failed"
)

// droppedCounter tracks tags and events that could not be recorded.
//
// Metric name: amp_events_dropped_total
// Labels:
//   - reason: no_runtime, no_span or marshal_failed
var droppedCounter = promauto.NewCounterVec( //nolint:gochecknoglobals
	prometheus.CounterOpts{
		Namespace: "amp",
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Total number of tags and events dropped because they could not be recorded",
	},
	[]string{"reason"},
)

// SetTags merges tags into the current span. A None value deletes the key.
// With no current span the tags go to the runtime's process-wide tags instead.
//
// Example:
//
//	events.SetTags(ctx, native.Tags{
//	    "user":   optional.Some("alice"),
//	    "draft":  optional.None[string](),
//	})
func SetTags(ctx context.Context, tags native.Tags) {
	if len(tags) == 0 {
		return
	}

	rt, ok := native.RuntimeFromContext(ctx)
	if !ok || rt == nil {
		droppedCounter.WithLabelValues(reasonNoRuntime).Inc()
		logger.Get(ctx).Warn("tags dropped: no tracing runtime in context", "count", len(tags))

		return
	}

	span, _ := spanctx.Current(ctx)

	// A nil span addresses the process-wide tags.
	rt.SetTags(span, tags)
}

// SetTag sets a single tag. See SetTags.
func SetTag(ctx context.Context, key, value string) {
	SetTags(ctx, native.Tags{key: optional.Some(value)})
}

// DeleteTag removes a tag set earlier. See SetTags.
func DeleteTag(ctx context.Context, key string) {
	SetTags(ctx, native.Tags{key: optional.None[string]()})
}

// LogEvent serializes event to JSON and attaches it to the current span.
// Without a current span the event is dropped with a warning.
func LogEvent(ctx context.Context, event LLMEvent) {
	if event == nil {
		return
	}

	log := logger.Get(ctx)

	rt, ok := native.RuntimeFromContext(ctx)
	if !ok || rt == nil {
		droppedCounter.WithLabelValues(reasonNoRuntime).Inc()
		log.Warn("event dropped: no tracing runtime in context", "event", event.EventName())

		return
	}

	span, ok := spanctx.Current(ctx)
	if !ok {
		droppedCounter.WithLabelValues(reasonNoSpan).Inc()
		log.Warn("event dropped: no active span", "event", event.EventName())

		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		droppedCounter.WithLabelValues(reasonMarshalFailed).Inc()
		log.Warn("event dropped: payload could not be serialized",
			"event", event.EventName(), "error", err)

		return
	}

	rt.LogEvent(span, native.Event{Name: event.EventName(), Payload: payload})
}
