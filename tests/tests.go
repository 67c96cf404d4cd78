// Package tests provides helpers for test suites that exercise traced code.
//
// GetUniqueContext gives each test a context carrying a unique id and the test
// name. TracedContext goes further and installs an in-memory runtime and a
// logger that writes to the test log, so spans and warnings produced by the
// code under test are isolated per test even when tests run in parallel.
//
// Example usage:
//
//	func TestMyFeature(t *testing.T) {
//	    t.Parallel()
//
//	    ctx, rt := tests.TracedContext(t)
//	    _, _ = myTracedFunc(ctx, 1, 2)
//
//	    spans := rt.Find("my-traced-func")
//	}
package tests

import (
	"context"
	"testing"

	"github.com/amp-labs/llmtrace/contexts"
	"github.com/amp-labs/llmtrace/logger"
	"github.com/amp-labs/llmtrace/native"
	"github.com/amp-labs/llmtrace/native/memory"
	"github.com/google/uuid"
	"github.com/neilotoole/slogt"
)

// contextKey is a private type used for storing test metadata in context.Context.
type contextKey string

const (
	// testIdKey is the context key for the unique test identifier ("test-<uuid>").
	testIdKey contextKey = "testId"

	// testNameKey is the context key for t.Name().
	testNameKey contextKey = "testName"
)

// GetUniqueContext creates a new context derived from t.Context() that carries
// a unique test identifier (UUID with "test-" prefix) and the test name.
func GetUniqueContext(t *testing.T) context.Context {
	t.Helper()

	ctx := contexts.WithValue[contextKey, string](t.Context(), testIdKey, "test-"+uuid.NewString())

	return contexts.WithValue[contextKey, string](ctx, testNameKey, t.Name())
}

// TracedContext returns a unique context with a fresh in-memory runtime
// installed and logging routed to t.Log.
func TracedContext(t *testing.T, opts ...memory.Option) (context.Context, *memory.Runtime) {
	t.Helper()

	rt := memory.New(opts...)

	ctx := GetUniqueContext(t)
	ctx = logger.WithLogger(ctx, slogt.New(t))
	ctx = native.WithRuntime(ctx, rt)

	return ctx, rt
}

// GetTestName retrieves the test name from the context.
func GetTestName(ctx context.Context) (string, bool) {
	return contexts.GetValue[contextKey, string](ctx, testNameKey)
}

// GetTestId retrieves the unique test identifier from the context.
func GetTestId(ctx context.Context) (string, bool) { //nolint:revive
	return contexts.GetValue[contextKey, string](ctx, testIdKey)
}

// Info represents test metadata containing both the unique identifier and test name.
type Info struct {
	Id   string `json:"id"`   //nolint:revive // Unique test identifier (UUID with "test-" prefix)
	Name string `json:"name"` // Full test name including subtest path
}

// GetTestInfo retrieves both the test ID and test name from the context.
// It reports false if neither value is present.
func GetTestInfo(ctx context.Context) (Info, bool) {
	name, nameOk := GetTestName(ctx)
	id, idOk := GetTestId(ctx)

	if !nameOk && !idOk {
		return Info{}, false
	}

	return Info{Id: id, Name: name}, true
}
