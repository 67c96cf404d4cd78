package otelnative

import (
	"context"
	"sync"
	"testing"

	"github.com/amp-labs/llmtrace/native"
	"github.com/amp-labs/llmtrace/optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRuntime(t *testing.T) (*Runtime, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	return New(provider.Tracer("otelnative-test")), exporter
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	out := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value
	}

	return out
}

func TestSpanParentageAndAttributes(t *testing.T) {
	t.Parallel()

	rt, exporter := newRuntime(t)
	ctx := context.Background()

	root := rt.CreateChildSpan(ctx, "root", nil)
	child := rt.CreateChildSpan(ctx, "add", root)

	assert.Equal(t, root.ID(), child.ParentID())

	rt.RecordInputs(child, native.Inputs{
		Args:     []native.ArgMetadata{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}},
		Values:   []any{1, 2},
		AsKwargs: true,
	})
	rt.RecordOutput(child, 3, "int")
	rt.CloseSpan(child)
	rt.CloseSpan(root)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	addSpan := spans[0]
	assert.Equal(t, "add", addSpan.Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), addSpan.Parent.SpanID())
	assert.Equal(t, codes.Ok, addSpan.Status.Code)

	attrs := attrMap(addSpan.Attributes)
	assert.JSONEq(t, `{"a":1,"b":2}`, attrs[AttrInputs].AsString())
	assert.Equal(t, []string{"int", "int"}, attrs[AttrInputTypes].AsStringSlice())
	assert.Equal(t, "3", attrs[AttrOutput].AsString())
	assert.Equal(t, "int", attrs[AttrReturnType].AsString())
}

func TestRecordError(t *testing.T) {
	t.Parallel()

	rt, exporter := newRuntime(t)

	s := rt.CreateChildSpan(context.Background(), "fails", nil)
	rt.RecordError(s, native.CodeError, "boom", "at main.go:1")
	rt.CloseSpan(s)
	rt.CloseSpan(s)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)

	attrs := attrMap(spans[0].Events[0].Attributes)
	assert.Equal(t, int64(native.CodeError), attrs[AttrErrorCode].AsInt64())
	assert.Equal(t, "at main.go:1", attrs[AttrStackTrace].AsString())
}

func TestTagsFlushedAtClose(t *testing.T) {
	t.Parallel()

	rt, exporter := newRuntime(t)

	rt.SetTags(nil, native.Tags{"env": optional.Some("test")})

	s := rt.CreateChildSpan(context.Background(), "tagged", nil)
	rt.SetTags(s, native.Tags{
		"attempt10": optional.Some("b"),
		"attempt2":  optional.Some("a"),
		"temp":      optional.Some("x"),
	})
	rt.SetTags(s, native.Tags{"temp": optional.None[string]()})
	rt.CloseSpan(s)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	var keys []string

	for _, kv := range spans[0].Attributes {
		keys = append(keys, string(kv.Key))
	}

	assert.Equal(t, []string{"attempt2", "attempt10", "env"}, keys)
}

func TestSpanTagOverridesProcessTag(t *testing.T) {
	t.Parallel()

	rt, exporter := newRuntime(t)

	rt.SetTags(nil, native.Tags{"owner": optional.Some("process")})

	s := rt.CreateChildSpan(context.Background(), "tagged", nil)
	rt.SetTags(s, native.Tags{"owner": optional.Some("span")})
	rt.CloseSpan(s)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "span", attrMap(spans[0].Attributes)["owner"].AsString())
}

func TestLogEvent(t *testing.T) {
	t.Parallel()

	rt, exporter := newRuntime(t)

	s := rt.CreateChildSpan(context.Background(), "events", nil)
	rt.LogEvent(s, native.Event{Name: "request-started", Payload: []byte(`{"client_name":"openai"}`)})
	rt.CloseSpan(s)

	rt.LogEvent(s, native.Event{Name: "late"})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)

	event := spans[0].Events[0]
	assert.Equal(t, "request-started", event.Name)
	assert.JSONEq(t, `{"client_name":"openai"}`, attrMap(event.Attributes)[AttrPayload].AsString())
}

func TestEncodeFallsBack(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"x"`, encode("x"))
	assert.NotEmpty(t, encode(make(chan int)))
}

func TestWritesRacingCloseNeverReachEndedSpan(t *testing.T) {
	t.Parallel()

	rt, exporter := newRuntime(t)

	for range 50 {
		s := rt.CreateChildSpan(context.Background(), "racing", nil)

		var wg sync.WaitGroup

		wg.Add(2)

		go func() {
			defer wg.Done()

			for range 100 {
				rt.SetTags(s, native.Tags{"k": optional.Some("v")})
				rt.LogEvent(s, native.Event{Name: "tick"})
			}
		}()

		go func() {
			defer wg.Done()

			rt.CloseSpan(s)
		}()

		wg.Wait()
	}

	spans := exporter.GetSpans()
	require.Len(t, spans, 50)

	for _, span := range spans {
		assert.Equal(t, codes.Ok, span.Status.Code)
		assert.Zero(t, span.DroppedEvents)
	}
}
