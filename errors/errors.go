// Package errors holds the sentinel errors shared across llmtrace packages.
package errors

import "errors"

var (
	// ErrWrongType is returned when a value does not have the type a caller expected.
	ErrWrongType = errors.New("wrong type")

	// ErrPanicRecovery wraps a recovered panic value so it can travel as an error.
	ErrPanicRecovery = errors.New("recovered from panic")

	// ErrNoRuntime is returned when a span is requested but no native runtime
	// has been installed in the context.
	ErrNoRuntime = errors.New("no tracing runtime in context")

	// ErrNilFuture is returned when an async callback hands back a nil future.
	ErrNilFuture = errors.New("async callback returned a nil future")
)

// Collection is a thread-unsafe utility for accumulating multiple errors.
// Use this when you need to collect errors from multiple operations and return them together.
type Collection struct {
	errors []error
}

// Add appends an error to the collection. Nil errors are ignored.
func (c *Collection) Add(err error) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

// HasError returns true if the collection contains at least one error.
func (c *Collection) HasError() bool {
	return len(c.errors) > 0
}

// GetError returns nil for an empty collection, the single error if there's only one,
// or a joined error otherwise.
func (c *Collection) GetError() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	default:
		return errors.Join(c.errors...)
	}
}
