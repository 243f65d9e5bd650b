package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")

	ErrNotFound          = errors.New("not found")
	ErrFlightNotFound    = fmt.Errorf("flight %w", ErrNotFound)
	ErrSeatNotFound      = fmt.Errorf("seat %w", ErrNotFound)
	ErrBookingNotFound   = fmt.Errorf("booking %w", ErrNotFound)
	ErrPassengerNotFound = fmt.Errorf("passenger %w", ErrNotFound)
	ErrWalletNotFound    = fmt.Errorf("wallet %w", ErrNotFound)

	ErrSeatUnavailable   = errors.New("seat unavailable")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrAlreadyCanceled   = errors.New("booking already canceled")
	ErrRequestInProgress = errors.New("request with this idempotency key is in progress")
)

// ValidationError wraps ErrValidation with the offending input.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type InsufficientFundsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Shortfall() int64 {
	return e.Required - e.Available
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: required %d, available %d", ErrInsufficientFunds, e.Required, e.Available)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrSeatUnavailable) ||
		errors.Is(err, ErrAlreadyCanceled) ||
		errors.Is(err, ErrRequestInProgress)
}
