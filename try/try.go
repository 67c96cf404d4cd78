// Package try holds a value/error pair so both halves of a Go result can travel
// through a single channel or callback.
package try

// Try is the settled outcome of a computation: a value, or an error.
type Try[A any] struct {
	Value A
	Error error
}

// Of builds a Try from the usual (value, error) pair.
func Of[A any](value A, err error) Try[A] {
	if err != nil {
		var zero A

		return Try[A]{Value: zero, Error: err}
	}

	return Try[A]{Value: value}
}

func (t Try[A]) IsSuccess() bool {
	return t.Error == nil
}

func (t Try[A]) IsFailure() bool {
	return t.Error != nil
}

// Get unpacks the Try back into Go's (value, error) convention.
func (t Try[A]) Get() (A, error) { //nolint:ireturn
	if t.IsFailure() {
		var zero A

		return zero, t.Error
	}

	return t.Value, nil
}

// Map applies f to a successful Try; failures pass through unchanged.
func Map[A, B any](t Try[A], f func(A) (B, error)) Try[B] {
	if t.IsSuccess() {
		val, err := f(t.Value)

		return Of(val, err)
	}

	return Try[B]{Error: t.Error}
}
