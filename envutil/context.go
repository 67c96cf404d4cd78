package envutil

import (
	"context"

	"github.com/amp-labs/llmtrace/contexts"
)

type envContextKey string

// WithEnvOverride makes every reader given the returned context see value for
// key, regardless of the process environment. Tests use it to stay parallel.
func WithEnvOverride(ctx context.Context, key string, value string) context.Context {
	return contexts.WithValue[envContextKey, string](ctx, envContextKey(key), value)
}

func getEnvOverride(ctx context.Context, key string) (string, bool) {
	return contexts.GetValue[envContextKey, string](ctx, envContextKey(key))
}
