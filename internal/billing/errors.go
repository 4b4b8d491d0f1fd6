// Package billing defines the error taxonomy shared by the settlement
// engine and the HTTP boundary.
package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: customer, business, payment, or association absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument: malformed date, negative or non-numeric amount,
	// or a customer not associated with the business.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict: transaction isolation violation; the caller may retry.
	ErrConflict = errors.New("conflict")
)

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// InvalidArgumentf wraps ErrInvalidArgument with a formatted message.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}

// Conflictf wraps ErrConflict with a formatted message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}
