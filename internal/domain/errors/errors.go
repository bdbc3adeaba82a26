// Package errors defines domain-specific error types.
// Using typed errors (instead of strings) allows clients to handle specific cases.
//
// Every workflow failure is expressed as a DomainError carrying a machine-readable
// Code and a human-readable Message. The wrapped category sentinel lets callers
// branch with errors.Is without parsing codes.
//
// Pattern: Sentinel Errors + Custom Error Types
package errors

import (
	"errors"
	"fmt"
)

// Category sentinels. Every DomainError wraps exactly one of them.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrEntityAlreadyExists = errors.New("entity already exists")
)

// Machine-readable codes.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidState      = "INVALID_STATE"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"

	CodeInvalidTransition = "INVALID_STATUS_TRANSITION"
	CodeNotCancellable    = "ORDER_NOT_CANCELLABLE"
	CodeOutOfStock        = "OUT_OF_STOCK"
	CodePriceMismatch     = "PRICE_MISMATCH"
	CodeNotPending        = "TRANSACTION_NOT_PENDING"
)

// DomainError is the (code, message) failure returned by every workflow.
type DomainError struct {
	Code    string // Machine-readable error code (e.g., "INSUFFICIENT_FUNDS")
	Message string // Human-readable message
	Err     error  // Category sentinel or underlying error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error.
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NotFound reports a missing or soft-deleted entity.
func NotFound(entity string, id fmt.Stringer) *DomainError {
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
		Err:     ErrNotFound,
	}
}

// Forbidden reports that the requester does not own the resource.
func Forbidden(message string) *DomainError {
	return &DomainError{Code: CodeForbidden, Message: message, Err: ErrForbidden}
}

// InvalidState reports an illegal transition or an operation not allowed in the current state.
// An empty code falls back to CodeInvalidState.
func InvalidState(code, message string) *DomainError {
	if code == "" {
		code = CodeInvalidState
	}
	return &DomainError{Code: code, Message: message, Err: ErrInvalidState}
}

// InsufficientFunds reports that a debit exceeds the available balance.
func InsufficientFunds(userID fmt.Stringer, required, available fmt.Stringer) *DomainError {
	return &DomainError{
		Code:    CodeInsufficientFunds,
		Message: fmt.Sprintf("user %s has balance %s, required %s", userID, available, required),
		Err:     ErrInsufficientFunds,
	}
}

// ValidationError represents validation failures with field-level details.
//
// Pattern: Composite Error for Multiple Validations
type ValidationError struct {
	Field   string // Field name that failed validation
	Message string // What went wrong
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %d error(s)", len(e))
}

// Add appends a validation error.
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Helper functions for common error checking

// IsNotFound checks if an error is a NotFound failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden checks if an error is a Forbidden failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsInvalidState checks if an error is an InvalidState failure.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsInsufficientFunds checks if an error is an InsufficientFunds failure.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var valErr ValidationError
	var valErrs ValidationErrors
	return errors.As(err, &valErr) || errors.As(err, &valErrs)
}

// IsDomainError reports whether err carries a DomainError anywhere in its chain.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// CodeOf returns the DomainError code in err's chain, or "" when there is none.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
