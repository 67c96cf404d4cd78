package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/llmtrace/native"
	"github.com/amp-labs/llmtrace/optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

func TestSpanLifecycle(t *testing.T) {
	t.Parallel()

	clock := clockz.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	rt := New(WithClock(clock))
	ctx := context.Background()

	root := rt.CreateChildSpan(ctx, "root", nil)
	child := rt.CreateChildSpan(ctx, "child", root)

	rt.RecordInputs(child, native.Inputs{
		Args:   []native.ArgMetadata{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}},
		Values: []any{1, 2},
	})
	rt.RecordOutput(child, 3, "int")

	clock.Advance(250 * time.Millisecond)
	rt.CloseSpan(child)
	rt.CloseSpan(root)

	rec, ok := rt.Get(child.ID())
	require.True(t, ok)

	assert.Equal(t, "child", rec.Name)
	assert.Equal(t, root.ID(), rec.ParentID)
	assert.Equal(t, []any{1, 2}, rec.Inputs.Values)
	assert.Equal(t, 3, rec.Output)
	assert.Equal(t, "int", rec.ReturnType)
	assert.Equal(t, native.SpanClosedOK, rec.State)
	assert.Equal(t, 250*time.Millisecond, rec.Duration)
	assert.Nil(t, rec.Error)

	assert.Len(t, rt.Children(root.ID()), 1)
	assert.Empty(t, rt.Children(child.ID()))
	assert.Equal(t, int64(2), rt.ClosedCount())
}

func TestRecordErrorClosesWithError(t *testing.T) {
	t.Parallel()

	rt := New()
	s := rt.CreateChildSpan(context.Background(), "fails", nil)

	rt.RecordError(s, native.CodeError, "boom", "trace")
	rt.CloseSpan(s)

	rec, ok := rt.Get(s.ID())
	require.True(t, ok)
	require.NotNil(t, rec.Error)
	assert.Equal(t, native.SpanClosedError, rec.State)
	assert.Equal(t, native.CodeError, rec.Error.Code)
	assert.Equal(t, "boom", rec.Error.Message)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	rt := New()
	calls := 0

	rt.OnSpanClosed(func(SpanRecord) { calls++ })

	s := rt.CreateChildSpan(context.Background(), "once", nil)
	rt.CloseSpan(s)
	rt.CloseSpan(s)

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), rt.ClosedCount())
}

func TestWritesAfterCloseAreIgnored(t *testing.T) {
	t.Parallel()

	rt := New()
	s := rt.CreateChildSpan(context.Background(), "closed", nil)
	rt.CloseSpan(s)

	rt.RecordOutput(s, "late", "string")
	rt.SetTags(s, native.Tags{"k": optional.Some("v")})
	rt.LogEvent(s, native.Event{Name: "late"})

	rec, ok := rt.Get(s.ID())
	require.True(t, ok)
	assert.Nil(t, rec.Output)
	assert.Empty(t, rec.Tags)
	assert.Empty(t, rec.Events)
}

func TestWritesRacingCloseMatchClosedSnapshot(t *testing.T) {
	t.Parallel()

	rt := New()

	var (
		mu        sync.Mutex
		snapshots = make(map[string]SpanRecord)
	)

	rt.OnSpanClosed(func(rec SpanRecord) {
		mu.Lock()
		defer mu.Unlock()

		snapshots[rec.ID] = rec
	})

	for range 50 {
		s := rt.CreateChildSpan(context.Background(), "racing", nil)

		var wg sync.WaitGroup

		wg.Add(2)

		go func() {
			defer wg.Done()

			for i := range 100 {
				rt.SetTags(s, native.Tags{"i": optional.Some(string(rune('a' + i%26)))})
				rt.LogEvent(s, native.Event{Name: "tick"})
			}
		}()

		go func() {
			defer wg.Done()

			rt.CloseSpan(s)
		}()

		wg.Wait()

		rec, ok := rt.Get(s.ID())
		require.True(t, ok)

		mu.Lock()
		closed := snapshots[s.ID()]
		mu.Unlock()

		assert.Equal(t, closed.Tags, rec.Tags)
		assert.Len(t, rec.Events, len(closed.Events))
	}
}

func TestTagsMergeAndDelete(t *testing.T) {
	t.Parallel()

	rt := New()
	s := rt.CreateChildSpan(context.Background(), "tagged", nil)

	rt.SetTags(s, native.Tags{"attempt10": optional.Some("x"), "attempt2": optional.Some("y"), "gone": optional.Some("z")})
	rt.SetTags(s, native.Tags{"gone": optional.None[string]()})
	rt.CloseSpan(s)

	rec, ok := rt.Get(s.ID())
	require.True(t, ok)
	assert.Equal(t, map[string]string{"attempt10": "x", "attempt2": "y"}, rec.Tags)
	assert.Equal(t, []string{"attempt2", "attempt10"}, rec.SortedTagKeys())
}

func TestProcessTags(t *testing.T) {
	t.Parallel()

	rt := New()

	rt.SetTags(nil, native.Tags{"env": optional.Some("test"), "drop": optional.Some("me")})
	rt.SetTags(nil, native.Tags{"drop": optional.None[string]()})

	assert.Equal(t, map[string]string{"env": "test"}, rt.ProcessTags())
}

func TestEventsAreCopied(t *testing.T) {
	t.Parallel()

	rt := New()
	s := rt.CreateChildSpan(context.Background(), "events", nil)

	payload := []byte(`{"a":1}`)
	rt.LogEvent(s, native.Event{Name: "e", Payload: payload})
	payload[0] = 'X'

	rec, ok := rt.Get(s.ID())
	require.True(t, ok)
	require.Len(t, rec.Events, 1)
	assert.JSONEq(t, `{"a":1}`, string(rec.Events[0].Payload))
}

func TestAsyncHandlers(t *testing.T) {
	t.Parallel()

	rt := New()

	var (
		mu    sync.Mutex
		names []string
	)

	rt.OnSpanClosedAsync(context.Background(), func(rec SpanRecord) {
		mu.Lock()
		defer mu.Unlock()

		names = append(names, rec.Name)
	})

	for _, name := range []string{"a", "b", "c"} {
		rt.CloseSpan(rt.CreateChildSpan(context.Background(), name, nil))
	}

	rt.Wait()

	mu.Lock()
	defer mu.Unlock()

	assert.ElementsMatch(t, []string{"a", "b", "c"}, names)
}

func TestFindAndReset(t *testing.T) {
	t.Parallel()

	rt := New()
	ctx := context.Background()

	rt.CreateChildSpan(ctx, "dup", nil)
	rt.CreateChildSpan(ctx, "dup", nil)
	rt.CreateChildSpan(ctx, "other", nil)

	assert.Len(t, rt.Find("dup"), 2)
	assert.Len(t, rt.Spans(), 3)

	rt.Reset()

	assert.Empty(t, rt.Spans())
	assert.Empty(t, rt.ProcessTags())
}

type foreignSpan struct{}

func (foreignSpan) ID() string       { return "x" }
func (foreignSpan) ParentID() string { return "" }
func (foreignSpan) Name() string     { return "foreign" }

func TestForeignSpanIgnored(t *testing.T) {
	t.Parallel()

	rt := New()

	assert.NotPanics(t, func() {
		rt.RecordOutput(foreignSpan{}, 1, "int")
		rt.CloseSpan(foreignSpan{})
	})
	assert.Empty(t, rt.Spans())
}
