package model

import (
	"errors"
	"fmt"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// ErrorKind classifies a domain error. The HTTP layer maps kinds to status codes.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindForbidden
	KindValidation
	KindNotFound
	KindConflict
	KindUpstreamProvider
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstreamProvider:
		return "upstream_provider"
	default:
		return "internal"
	}
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON           = "INVALID_JSON"
	ErrCodeMissingField          = "MISSING_FIELD"
	ErrCodeValidation            = "VALIDATION_FAILED"
	ErrCodeUnauthorised          = "UNAUTHORIZED"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeEmptyCart             = "EMPTY_CART"
	ErrCodeInconsistentDateRange = "INCONSISTENT_DATE_RANGE"
	ErrCodeCartDateMismatch      = "CART_DATE_MISMATCH"
	ErrCodeInvalidSignature      = "INVALID_SIGNATURE"
	ErrCodeProductNotFound       = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound         = "ORDER_NOT_FOUND"
	ErrCodeCartLineNotFound      = "CART_LINE_NOT_FOUND"
	ErrCodeTerminalConflict      = "TERMINAL_STATUS_CONFLICT"
	ErrCodeCheckoutInProgress    = "CHECKOUT_IN_PROGRESS"
	ErrCodeUnknownProvider       = "UNKNOWN_PROVIDER"
	ErrCodePaymentProvider       = "PAYMENT_PROVIDER_ERROR"
	ErrCodeInternalError         = "INTERNAL_ERROR"
)

// DomainError is a business error carrying its kind and API code.
type DomainError struct {
	Kind    ErrorKind
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

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error with a custom message.
func NewValidationError(message string) *DomainError {
	return NewDomainError(KindValidation, ErrCodeValidation, message)
}

// Common domain errors
var (
	ErrUnauthenticated        = NewDomainError(KindUnauthenticated, ErrCodeUnauthorised, "Authentication required")
	ErrForbidden              = NewDomainError(KindForbidden, ErrCodeForbidden, "You are not allowed to access this resource")
	ErrInvalidJSON            = NewDomainError(KindValidation, ErrCodeInvalidJSON, "Request body is not valid JSON")
	ErrEmptyCart              = NewDomainError(KindValidation, ErrCodeEmptyCart, "Cart is empty")
	ErrInconsistentDateRange  = NewDomainError(KindValidation, ErrCodeInconsistentDateRange, "All cart lines must share the same rental dates")
	ErrInvalidDateRange       = NewDomainError(KindValidation, ErrCodeValidation, "End date must not be before start date")
	ErrCartDateMismatch       = NewDomainError(KindConflict, ErrCodeCartDateMismatch, "Cart dates no longer match the order")
	ErrInvalidSignature       = NewDomainError(KindUnauthenticated, ErrCodeInvalidSignature, "invalid signature")
	ErrInvalidPayload         = NewDomainError(KindValidation, ErrCodeInvalidJSON, "bad json")
	ErrMissingSessionID       = NewDomainError(KindValidation, ErrCodeMissingField, "sessionId is required")
	ErrProductNotFound        = NewDomainError(KindNotFound, ErrCodeProductNotFound, "Product not found")
	ErrOrderNotFound          = NewDomainError(KindNotFound, ErrCodeOrderNotFound, "Order not found")
	ErrCartLineNotFound       = NewDomainError(KindNotFound, ErrCodeCartLineNotFound, "Cart line not found")
	ErrTerminalStatusConflict = NewDomainError(KindConflict, ErrCodeTerminalConflict, "Order already reached a different final status")
	ErrCheckoutInProgress     = NewDomainError(KindConflict, ErrCodeCheckoutInProgress, "A checkout with this idempotency key is already in progress")
	ErrUnknownProvider        = NewDomainError(KindValidation, ErrCodeUnknownProvider, "Unknown payment provider")
	ErrPaymentUnverifiable    = NewDomainError(KindValidation, ErrCodePaymentProvider, "Unable to verify payment status")
)

// ProviderError wraps a failed payment provider call. Status and Payload are
// for server-side logs only.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Payload  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s provider error (status %d): %s: %v", e.Provider, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.Status, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a provider error.
func NewProviderError(provider string, status int, message, payload string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Status:   status,
		Message:  message,
		Payload:  payload,
	}
}

// KindOf returns the kind of err. Provider errors are UpstreamProvider;
// anything unrecognised is Internal.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return KindUpstreamProvider
	}
	return KindInternal
}
