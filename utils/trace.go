package utils //nolint:revive // utils is an appropriate package name for utility functions

import (
	"fmt"
	"strings"
)

// DropFirstLine returns text without its first line. Go stack dumps start with a
// "goroutine N [running]:" header and verbose error formats start with the message
// itself, so in both cases the first line repeats something recorded elsewhere.
func DropFirstLine(text string) string {
	_, rest, found := strings.Cut(text, "\n")
	if !found {
		return ""
	}

	return rest
}

// ErrorTrace renders err with the %+v verb and strips the leading message line.
// Errors that carry a stack (or any multi-line detail) keep it; plain errors
// produce an empty trace.
func ErrorTrace(err error) string {
	if err == nil {
		return ""
	}

	return DropFirstLine(fmt.Sprintf("%+v", err))
}
