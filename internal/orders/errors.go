package orders

import (
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNotOwner      = errors.New("you do not own this order item")
	ErrInvalidStatus = errors.New("invalid status")
	ErrNoPayment     = errors.New("no payment record found for this order")
	ErrNoSellerItems = errors.New("you don't have items in this order")
	ErrOrderClosed   = errors.New("order is cancelled or refunded")
	ErrConflict      = errors.New("order item was modified concurrently")
)

// ValidationError carries user-facing messages; nothing was persisted.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, " ")
}

func invalid(msgs ...string) error {
	return &ValidationError{Messages: msgs}
}

// CheckoutError wraps a failure of the hosted-checkout processor; the order
// and payment keep their prior state.
type CheckoutError struct {
	Err error
}

func (e *CheckoutError) Error() string { return "checkout: " + e.Err.Error() }

func (e *CheckoutError) Unwrap() error { return e.Err }
