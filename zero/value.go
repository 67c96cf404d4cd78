// Package zero provides the zero value of a generic type parameter.
package zero

// Value returns the zero value for type T.
//
// Example:
//
//	var defaultInt = zero.Value[int]()        // returns 0
//	var defaultPtr = zero.Value[*MyStruct]()  // returns nil
func Value[T any]() T {
	var zeroVal T

	return zeroVal
}
