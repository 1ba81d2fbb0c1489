package chain

import (
	"errors"
	"fmt"
)

// Category normalizes chain-facing failures into the taxonomy the rest of the
// layer acts on.
type Category string

const (
	// CategoryTransport is an RPC or network failure. Retryable, but only by
	// an explicit user-triggered refetch; nothing in this layer retries
	// silently.
	CategoryTransport Category = "transport"

	// CategoryRejected means the submission was declined before broadcast,
	// e.g. the user dismissed the wallet prompt.
	CategoryRejected Category = "rejected"

	// CategoryExecution means the registry rejected the operation after
	// broadcast, e.g. responding to a non-Open listing.
	CategoryExecution Category = "execution"
)

// Error wraps chain failures with normalized categorization.
type Error struct {
	Category   Category
	Contract   string
	Method     string
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s.%s [%s]: %s: %v", e.Contract, e.Method, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s.%s [%s]: %s", e.Contract, e.Method, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError creates a categorized chain error.
func NewError(category Category, contract, method, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Contract:   contract,
		Method:     method,
		Message:    message,
		Underlying: underlying,
	}
}

// CategoryOf extracts the category from an error. Uncategorized errors count
// as transport failures: the conservative reading of an unknown failure at
// the chain boundary.
func CategoryOf(err error) Category {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category
	}
	return CategoryTransport
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	return CategoryOf(err) == CategoryTransport
}

// IsRejected reports whether err is a pre-broadcast rejection.
func IsRejected(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Category == CategoryRejected
}

// IsExecution reports whether err is a post-broadcast registry rejection.
func IsExecution(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Category == CategoryExecution
}
