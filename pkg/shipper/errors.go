package shipper

import (
	"context"
	"errors"
	"fmt"
)

// Error codes carried by ShipperError.
const (
	CodeTransport = "TRANSPORT"
	CodeProvider  = "PROVIDER"
	CodeEncoding  = "ENCODING"
)

// ShipperError represents an error from a logistics provider.
type ShipperError struct {
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Body       []byte // raw provider response, when there was one
	Cause      error
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ShipperError.
func (e *ShipperError) Is(target error) bool {
	t, ok := target.(*ShipperError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewShipperError creates a new ShipperError.
func NewShipperError(carrier, code, message string) *ShipperError {
	return &ShipperError{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *ShipperError) WithRetryable(retryable bool) *ShipperError {
	e.Retryable = retryable
	return e
}

// WithBody attaches the raw provider response.
func (e *ShipperError) WithBody(body []byte) *ShipperError {
	e.Body = body
	return e
}

// Sentinel errors, one per failure class of the submission pipeline.
var (
	// ErrConfiguration indicates required configuration is missing or invalid.
	ErrConfiguration = errors.New("configuration error")

	// ErrCredentialNotConfigured indicates no provider API key is stored for the session.
	ErrCredentialNotConfigured = fmt.Errorf("%w: credential not configured", ErrConfiguration)

	// ErrStaleSelection indicates a selected line is no longer among the current orders.
	ErrStaleSelection = errors.New("stale selection")

	// ErrValidation indicates an order line cannot be shipped as is.
	ErrValidation = errors.New("validation error")

	// ErrMissingShippingAddress indicates the order has no shipping address.
	ErrMissingShippingAddress = fmt.Errorf("%w: missing shipping address", ErrValidation)

	// ErrTransport indicates the provider could not be reached.
	ErrTransport = errors.New("transport error")

	// ErrProvider indicates the provider answered with a non-success status.
	ErrProvider = errors.New("provider error")

	// ErrCarrierNotFound indicates the requested carrier is not registered.
	ErrCarrierNotFound = fmt.Errorf("%w: carrier not found", ErrConfiguration)
)

// Class is the failure class of a pipeline error.
type Class string

const (
	ClassNone           Class = ""
	ClassConfiguration  Class = "configuration"
	ClassStaleSelection Class = "stale_selection"
	ClassValidation     Class = "validation"
	ClassTransport      Class = "transport"
	ClassProvider       Class = "provider"
	ClassUnknown        Class = "unknown"
)

// Classify maps an error to its failure class.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrConfiguration):
		return ClassConfiguration
	case errors.Is(err, ErrStaleSelection):
		return ClassStaleSelection
	case errors.Is(err, ErrValidation):
		return ClassValidation
	case errors.Is(err, ErrProvider):
		return ClassProvider
	case errors.Is(err, ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ClassTransport
	default:
		return ClassUnknown
	}
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Retryable
	}
	return errors.Is(err, ErrTransport)
}
