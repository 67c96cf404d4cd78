package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/amp-labs/llmtrace/envutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))

		out = append(out, rec)
	}

	return out
}

func TestLogger(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem: "test",
		JSON:      true,
		Output:    &buf,
	})

	Get().Info("default subsystem")

	ctx := WithSubsystem(t.Context(), "overridden")
	Get(ctx).Info("overridden subsystem")

	ctx = WithSpan(ctx, "span-1", "outer")
	ctx = WithSpan(ctx, "span-2", "inner")
	Get(ctx).Info("inside span")

	ctx = With(ctx, "request", 7)
	Get(ctx).Info("with values")

	Get(WithMuted(ctx, true)).Error("never printed")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 4)

	assert.Equal(t, "test", lines[0]["subsystem"])
	assert.Equal(t, "overridden", lines[1]["subsystem"])
	assert.Equal(t, "span-2", lines[2]["span_id"])
	assert.Equal(t, "inner", lines[2]["span_name"])
	assert.InDelta(t, 7, lines[3]["request"], 0)
}

func TestConfigureLoggingFromEnv(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ctx := envutil.WithEnvOverride(t.Context(), "LOG_JSON", "true")
	ctx = envutil.WithEnvOverride(ctx, "LOG_LEVEL", "warn")

	_, err := ConfigureLogging(ctx, "env-app", WithOutput(&buf))
	require.NoError(t, err)

	Get().Info("filtered out")
	Get().Warn("kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["msg"])
	assert.Equal(t, "env-app", lines[0]["subsystem"])
}

func TestConfigureLoggingRejectsBadOutput(t *testing.T) { //nolint:paralleltest
	ctx := envutil.WithEnvOverride(t.Context(), "LOG_OUTPUT", "syslog")

	_, err := ConfigureLogging(ctx, "bad")
	require.ErrorIs(t, err, ErrInvalidLogOutput)
}

type captureHandler struct {
	records *[]slog.Record
}

func (c captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (c captureHandler) Handle(_ context.Context, r slog.Record) error {
	*c.records = append(*c.records, r)

	return nil
}

func (c captureHandler) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c captureHandler) WithGroup(string) slog.Handler      { return c }

func TestAttachHandlerFansOut(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{Subsystem: "fan", JSON: true, Output: &buf})

	var captured []slog.Record

	AttachHandler(captureHandler{records: &captured})

	Get().Info("both")

	require.Len(t, captured, 1)
	assert.Equal(t, "both", captured[0].Message)
	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithLogger(t.Context(), base)
	ctx = WithSpan(ctx, "span-9", "scoped")

	Get(ctx).Info("scoped")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "scoped", lines[0]["msg"])
	assert.Equal(t, "span-9", lines[0]["span_id"])
}
