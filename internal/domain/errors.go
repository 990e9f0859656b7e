package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so the sentinels below
// work with errors.Is regardless of the message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// Domain validation errors
const (
	ErrCodeInvalidTransition        = "INVALID_TRANSITION"
	ErrCodePaymentNotFound          = "PAYMENT_NOT_FOUND"
	ErrCodeTokenNotFound            = "TOKEN_NOT_FOUND"
	ErrCodeInvalidAmount            = "INVALID_AMOUNT"
	ErrCodeInvalidRate              = "INVALID_RATE"
	ErrCodeInvalidTokenValue        = "INVALID_TOKEN_VALUE"
	ErrCodeMissingRequiredField     = "MISSING_REQUIRED_FIELD"
	ErrCodeDuplicateReference       = "DUPLICATE_REFERENCE"
	ErrCodeTokenCollision           = "TOKEN_COLLISION"
	ErrCodeTokenGenerationExhausted = "TOKEN_GENERATION_EXHAUSTED"
	ErrCodeAmountMismatch           = "AMOUNT_MISMATCH"
	ErrCodeMeterMismatch            = "METER_MISMATCH"
)

var (
	ErrInvalidTransition        = &DomainError{Code: ErrCodeInvalidTransition, Message: "invalid status transition"}
	ErrPaymentNotFound          = &DomainError{Code: ErrCodePaymentNotFound, Message: "payment not found"}
	ErrTokenNotFound            = &DomainError{Code: ErrCodeTokenNotFound, Message: "token not found"}
	ErrInvalidAmount            = &DomainError{Code: ErrCodeInvalidAmount, Message: "invalid amount"}
	ErrInvalidRate              = &DomainError{Code: ErrCodeInvalidRate, Message: "invalid rate"}
	ErrInvalidTokenValue        = &DomainError{Code: ErrCodeInvalidTokenValue, Message: "invalid token value"}
	ErrMissingRequiredField     = &DomainError{Code: ErrCodeMissingRequiredField, Message: "missing required field"}
	ErrDuplicateReference       = &DomainError{Code: ErrCodeDuplicateReference, Message: "duplicate reference"}
	ErrTokenCollision           = &DomainError{Code: ErrCodeTokenCollision, Message: "token value already in use"}
	ErrTokenGenerationExhausted = &DomainError{Code: ErrCodeTokenGenerationExhausted, Message: "token generation exhausted"}
	ErrAmountMismatch           = &DomainError{Code: ErrCodeAmountMismatch, Message: "amount mismatch"}
	ErrMeterMismatch            = &DomainError{Code: ErrCodeMeterMismatch, Message: "meter identifier mismatch"}
)

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInvalidAmountError(amount string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %s", amount),
	}
}

func NewInvalidRateError(rate string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidRate,
		Message: fmt.Sprintf("invalid rate per unit %s", rate),
	}
}

func NewInvalidTokenValueError(value string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTokenValue,
		Message: fmt.Sprintf("token value %q is not numeric", value),
	}
}

func NewInvalidTransitionError(from, to PaymentStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewPaymentNotFoundError(reference string) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentNotFound,
		Message: fmt.Sprintf("payment with reference %s not found", reference),
	}
}

func NewTokenNotFoundError(key string) *DomainError {
	return &DomainError{
		Code:    ErrCodeTokenNotFound,
		Message: fmt.Sprintf("no token issued for %s", key),
	}
}

func NewDuplicateReferenceError(reference string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateReference,
		Message: fmt.Sprintf("payment with reference %s already exists", reference),
	}
}

func NewTokenCollisionError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeTokenCollision,
		Message: "generated token value already in use",
		Err:     err,
	}
}

func NewTokenGenerationExhaustedError(reference string, attempts int) *DomainError {
	return &DomainError{
		Code:    ErrCodeTokenGenerationExhausted,
		Message: fmt.Sprintf("no unique token for %s after %d attempts", reference, attempts),
	}
}

func NewAmountMismatchError(expected, actual string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAmountMismatch,
		Message: fmt.Sprintf("amount mismatch: expected %s, got %s", expected, actual),
	}
}

func NewMeterMismatchError(expected, actual string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMeterMismatch,
		Message: fmt.Sprintf("meter identifier mismatch: payment was made for %s, not %s", expected, actual),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
