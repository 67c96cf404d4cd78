// Package otelnative is a native.Runtime that records spans through an
// OpenTelemetry tracer.
//
// Inputs and outputs become JSON-encoded span attributes. Tags are buffered
// on the span and flushed as attributes when it closes, so a tag that is
// deleted before the span ends never reaches the exporter.
package otelnative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"

	"facette.io/natsort"
	"github.com/amp-labs/llmtrace/logger"
	"github.com/amp-labs/llmtrace/native"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
)

// Attribute keys written by this runtime.
const (
	AttrInputs     = "llmtrace.inputs"
	AttrInputTypes = "llmtrace.input_types"
	AttrOutput     = "llmtrace.output"
	AttrReturnType = "llmtrace.return_type"
	AttrErrorCode  = "llmtrace.error.code"
	AttrPayload    = "llmtrace.payload"
	AttrStackTrace = "exception.stacktrace"
)

type span struct {
	id       string
	parentID string
	name     string

	otel trace.Span

	mu     sync.Mutex
	tags   map[string]string
	failed bool
	closed *atomic.Bool
}

func (s *span) ID() string       { return s.id }
func (s *span) ParentID() string { return s.parentID }
func (s *span) Name() string     { return s.name }

// Runtime adapts a trace.Tracer to native.Runtime.
type Runtime struct {
	tracer trace.Tracer

	mu          sync.RWMutex
	processTags map[string]string
}

var _ native.Runtime = (*Runtime)(nil)

// New creates a runtime that starts its spans with tracer.
func New(tracer trace.Tracer) *Runtime {
	return &Runtime{
		tracer:      tracer,
		processTags: make(map[string]string),
	}
}

func (r *Runtime) CreateChildSpan(ctx context.Context, name string, parent native.Span) native.Span {
	var parentID string

	if parent != nil {
		parentID = parent.ID()

		if p, ok := parent.(*span); ok {
			ctx = trace.ContextWithSpan(ctx, p.otel)
		}
	}

	_, otelSpan := r.tracer.Start(ctx, name)

	id := uuid.NewString()
	if sc := otelSpan.SpanContext(); sc.HasSpanID() {
		id = sc.SpanID().String()
	}

	return &span{
		id:       id,
		parentID: parentID,
		name:     name,
		otel:     otelSpan,
		closed:   atomic.NewBool(false),
	}
}

// acquire locks the span behind handle. It fails for foreign or closed spans;
// on success the caller must unlock s.mu.
func (r *Runtime) acquire(handle native.Span, op string) (*span, bool) {
	s, ok := handle.(*span)
	if !ok || s == nil {
		logger.Get().Warn("otel runtime: span not created by this runtime", "op", op)

		return nil, false
	}

	s.mu.Lock()

	if s.closed.Load() {
		s.mu.Unlock()

		return nil, false
	}

	return s, true
}

func (r *Runtime) RecordInputs(handle native.Span, inputs native.Inputs) {
	s, ok := r.acquire(handle, "RecordInputs")
	if !ok {
		return
	}
	defer s.mu.Unlock()

	attrs := []attribute.KeyValue{attribute.String(AttrInputs, encode(inputs.Recorded()))}

	if len(inputs.Args) > 0 {
		types := make([]string, len(inputs.Args))
		for i, arg := range inputs.Args {
			types[i] = arg.Type
		}

		attrs = append(attrs, attribute.StringSlice(AttrInputTypes, types))
	}

	s.otel.SetAttributes(attrs...)
}

func (r *Runtime) RecordOutput(handle native.Span, value any, returnType string) {
	s, ok := r.acquire(handle, "RecordOutput")
	if !ok {
		return
	}
	defer s.mu.Unlock()

	s.otel.SetAttributes(
		attribute.String(AttrOutput, encode(value)),
		attribute.String(AttrReturnType, returnType),
	)
}

func (r *Runtime) RecordError(handle native.Span, code int, message, stack string) {
	s, ok := r.acquire(handle, "RecordError")
	if !ok {
		return
	}
	defer s.mu.Unlock()

	s.failed = true

	s.otel.RecordError(errors.New(message), trace.WithAttributes( //nolint:err113
		attribute.Int(AttrErrorCode, code),
		attribute.String(AttrStackTrace, stack),
	))
	s.otel.SetStatus(codes.Error, message)
}

func (r *Runtime) CloseSpan(handle native.Span) {
	s, ok := handle.(*span)
	if !ok || s == nil {
		logger.Get().Warn("otel runtime: span not created by this runtime", "op", "CloseSpan")

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	r.mu.RLock()
	merged := maps.Clone(r.processTags)
	r.mu.RUnlock()

	maps.Copy(merged, s.tags)
	failed := s.failed

	if len(merged) > 0 {
		s.otel.SetAttributes(tagAttributes(merged)...)
	}

	if !failed {
		s.otel.SetStatus(codes.Ok, "")
	}

	s.otel.End()
}

func tagAttributes(tags map[string]string) []attribute.KeyValue {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}

	natsort.Sort(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, tags[k]))
	}

	return attrs
}

func (r *Runtime) SetTags(handle native.Span, tags native.Tags) {
	if handle == nil {
		r.mu.Lock()
		defer r.mu.Unlock()

		applyTags(r.processTags, tags)

		return
	}

	s, ok := r.acquire(handle, "SetTags")
	if !ok {
		return
	}
	defer s.mu.Unlock()

	if s.tags == nil {
		s.tags = make(map[string]string, len(tags))
	}

	applyTags(s.tags, tags)
}

func applyTags(dst map[string]string, tags native.Tags) {
	for key, value := range tags {
		if v, ok := value.Get(); ok {
			dst[key] = v
		} else {
			delete(dst, key)
		}
	}
}

func (r *Runtime) LogEvent(handle native.Span, event native.Event) {
	s, ok := r.acquire(handle, "LogEvent")
	if !ok {
		return
	}
	defer s.mu.Unlock()

	s.otel.AddEvent(event.Name, trace.WithAttributes(attribute.String(AttrPayload, string(event.Payload))))
}

// encode renders a value as JSON, falling back to %v for values json cannot handle.
func encode(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}

	return string(data)
}
