package valuation

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrInsufficientHoldings reports a sell or outbound delivery larger than the position.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	// ErrNotFound reports an unknown portfolio, security, transaction or quote.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists reports an id that is already taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrCancelled reports that the caller cancelled the request or its deadline expired.
	ErrCancelled = errors.New("cancelled")
)

// ValidationError describes why an event, a portfolio, a security or a quote
// was rejected.
type ValidationError struct {
	Field  string // Field is the offending event field, if any.
	Reason string
	Err    error // Err is an optional underlying cause.
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "invalid " + msg
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// cancelled maps context errors to ErrCancelled, keeping the cause.
func cancelled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return err
}
