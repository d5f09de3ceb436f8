package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorType is the failure class of one source attempt
type ErrorType string

const (
	// ErrorTypeNetwork is a connection, DNS or TLS failure
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit is an HTTP 429 from the upstream
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeServer is an HTTP 5xx
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeClient is any other HTTP 4xx
	ErrorTypeClient ErrorType = "client"
	// ErrorTypeSession is a 401/403 from an upstream that gates its API behind
	// cookies; a fresh session may succeed
	ErrorTypeSession ErrorType = "session"
	// ErrorTypeValidation means the upstream answered with something unusable
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeTimeout is an attempt that ran past its deadline
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeNoData means the upstream answered but knows nothing of the request
	ErrorTypeNoData ErrorType = "no_data"
	// ErrorTypeUnknown is anything unclassified
	ErrorTypeUnknown ErrorType = "unknown"
)

// retryable lists the classes worth another attempt against the same source
var retryable = map[ErrorType]bool{
	ErrorTypeNetwork:   true,
	ErrorTypeRateLimit: true,
	ErrorTypeServer:    true,
	ErrorTypeSession:   true,
	ErrorTypeTimeout:   true,
	ErrorTypeNoData:    true,
}

// FetchError is a structured failure of a single source attempt
type FetchError struct {
	Type       ErrorType
	Retryable  bool
	StatusCode int
	Message    string
	Cause      error
}

func newError(t ErrorType, status int, message string, cause error) *FetchError {
	return &FetchError{
		Type:       t,
		Retryable:  retryable[t],
		StatusCode: status,
		Message:    message,
		Cause:      cause,
	}
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewNetworkError wraps a transport failure
func NewNetworkError(cause error) *FetchError {
	return newError(ErrorTypeNetwork, 0, "network request failed", cause)
}

// NewRateLimitError reports an upstream asking us to slow down
func NewRateLimitError(statusCode int) *FetchError {
	return newError(ErrorTypeRateLimit, statusCode, "rate limit exceeded", nil)
}

// NewServerError reports an upstream 5xx
func NewServerError(statusCode int) *FetchError {
	return newError(ErrorTypeServer, statusCode, "server returned an error", nil)
}

// NewClientError reports a request the upstream refused for good
func NewClientError(statusCode int, message string) *FetchError {
	return newError(ErrorTypeClient, statusCode, message, nil)
}

// NewSessionError reports a rejected or expired upstream session
func NewSessionError(statusCode int) *FetchError {
	return newError(ErrorTypeSession, statusCode, "session rejected", nil)
}

// NewValidationError reports a response that could not be turned into data
func NewValidationError(message string) *FetchError {
	return newError(ErrorTypeValidation, 0, message, nil)
}

// NewTimeoutError wraps a deadline overrun
func NewTimeoutError(cause error) *FetchError {
	return newError(ErrorTypeTimeout, 0, "request timed out", cause)
}

// NewNoDataError reports an empty answer for symbol. It matches ErrNoData.
func NewNoDataError(symbol string) *FetchError {
	return newError(ErrorTypeNoData, 0, fmt.Sprintf("no data for %s", symbol), ErrNoData)
}

// ClassifyHTTPError maps a non-2xx status onto the taxonomy
func ClassifyHTTPError(statusCode int) *FetchError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(statusCode)
	case statusCode == http.StatusRequestTimeout:
		return newError(ErrorTypeTimeout, statusCode, "upstream timed out", nil)
	case statusCode >= 500:
		return NewServerError(statusCode)
	case statusCode >= 400:
		return NewClientError(statusCode, fmt.Sprintf("client error: HTTP %d", statusCode))
	default:
		return newError(ErrorTypeUnknown, statusCode, fmt.Sprintf("unexpected status code: %d", statusCode), nil)
	}
}

// ClassifyTransportError wraps an error returned by the HTTP client
func ClassifyTransportError(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(err)
	}
	return NewNetworkError(err)
}

// TypeOf returns the error category of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Type
	}
	if errors.Is(err, ErrNoData) {
		return ErrorTypeNoData
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether another attempt against the same source may succeed.
// Errors that are not FetchErrors are assumed transient.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return true
}
