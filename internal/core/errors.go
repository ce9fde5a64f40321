package core

import (
	"errors"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyTitle       = errors.New("title is required")
	ErrEmptyName        = errors.New("name is required")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeAmount   = errors.New("amount cannot be negative")
	ErrAmountTooLarge   = errors.New("amount is too large")
	ErrInvalidDate      = errors.New("invalid date")
	ErrNoCategories     = errors.New("at least one category is required")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrInvalidDateRange = errors.New("from date must not be after to date")
	ErrDuplicateID      = errors.New("duplicate id")
)

// ValidationError reports an input value that was rejected before any
// operation was attempted.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid wraps err as a ValidationError on field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
