package native_test

import (
	"context"
	"testing"

	"github.com/amp-labs/llmtrace/native"
	"github.com/stretchr/testify/assert"
)

func TestInputsViews(t *testing.T) {
	t.Parallel()

	in := native.Inputs{
		Args: []native.ArgMetadata{
			{Name: "a", Type: "number"},
			{Name: "b", Type: "number"},
		},
		Values: []any{1, 2, 3},
	}

	assert.Equal(t, []any{1, 2, 3}, in.Positional())
	assert.Equal(t, map[string]any{"a": 1, "b": 2, "arg2": 3}, in.Keyed())
	assert.Equal(t, []any{1, 2, 3}, in.Recorded())

	in.AsKwargs = true
	assert.Equal(t, map[string]any{"a": 1, "b": 2, "arg2": 3}, in.Recorded())
}

func TestPositionalIsACopy(t *testing.T) {
	t.Parallel()

	in := native.Inputs{Values: []any{"x"}}
	out := in.Positional()
	out[0] = "y"

	assert.Equal(t, "x", in.Values[0])
}

func TestSpanStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "open", native.SpanOpen.String())
	assert.Equal(t, "closed-ok", native.SpanClosedOK.String())
	assert.Equal(t, "closed-error", native.SpanClosedError.String())
}

type nopRuntime struct{ native.Runtime }

func TestRuntimeFromContext(t *testing.T) {
	t.Parallel()

	_, ok := native.RuntimeFromContext(t.Context())
	assert.False(t, ok)

	rt := &nopRuntime{}
	ctx := native.WithRuntime(t.Context(), rt)

	got, ok := native.RuntimeFromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, rt, got)

	_, ok = native.RuntimeFromContext(context.Background()) //nolint:usetesting
	assert.False(t, ok)
}
