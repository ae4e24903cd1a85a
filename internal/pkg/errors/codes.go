package errors

import (
	"fmt"
	"net/http"
)

// Error code constants.
// Errors carry a code plus params; the admin UI maps codes to operator text.

// Allocation error codes.
const (
	CodeNoAvailablePorts       = "NO_AVAILABLE_PORTS"
	CodePortInUse              = "PORT_IN_USE"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeLockTimeout            = "LOCK_TIMEOUT"
)

// Lookup error codes.
const (
	CodeNotFound             = "NOT_FOUND"
	CodePortNotFound         = "PORT_NOT_FOUND"
	CodeSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
)

// KindOf maps a code to its taxonomy kind.
func KindOf(code string) string {
	switch code {
	case CodePortNotFound, CodeSubscriptionNotFound:
		return CodeNotFound
	default:
		return code
	}
}

// Auth error codes.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
)

// Validation error codes.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeRateLimited      = "RATE_LIMITED"
)

// Convenience constructors using predefined codes.

// ErrNoAvailablePortsf reports an exhausted pool.
func ErrNoAvailablePortsf() *AppError {
	return &AppError{
		Code:       CodeNoAvailablePorts,
		Kind:       KindOf(CodeNoAvailablePorts),
		Message:    "no available ports in the pool",
		HTTPStatus: http.StatusConflict,
	}
}

// ErrPortInUsef rejects an operation on a port that is bound to a subscription.
func ErrPortInUsef(portID string) *AppError {
	return (&AppError{
		Code:       CodePortInUse,
		Kind:       KindOf(CodePortInUse),
		Message:    "port is assigned to a subscription",
		HTTPStatus: http.StatusConflict,
	}).WithParams(map[string]interface{}{"port_id": portID})
}

// ErrInvalidTransitionf rejects an illegal port or subscription state change.
func ErrInvalidTransitionf(from, to string) *AppError {
	return (&AppError{
		Code:       CodeInvalidStateTransition,
		Kind:       KindOf(CodeInvalidStateTransition),
		Message:    fmt.Sprintf("cannot transition from %s to %s", from, to),
		HTTPStatus: http.StatusConflict,
	}).WithParams(map[string]interface{}{"from": from, "to": to})
}

// ErrPortNotFoundf creates a port not found error.
func ErrPortNotFoundf(portID string) *AppError {
	return (&AppError{
		Code:       CodePortNotFound,
		Kind:       KindOf(CodePortNotFound),
		Message:    "port not found",
		HTTPStatus: http.StatusNotFound,
	}).WithParams(map[string]interface{}{"port_id": portID})
}

// ErrSubscriptionNotFoundf creates a subscription not found error.
func ErrSubscriptionNotFoundf(subscriptionID string) *AppError {
	return (&AppError{
		Code:       CodeSubscriptionNotFound,
		Kind:       KindOf(CodeSubscriptionNotFound),
		Message:    "subscription not found",
		HTTPStatus: http.StatusNotFound,
	}).WithParams(map[string]interface{}{"subscription_id": subscriptionID})
}

// ErrLockTimeoutf wraps a lock wait or deadlock abort from the store.
// The transaction was rolled back; callers may retry.
func ErrLockTimeoutf(err error) *AppError {
	return &AppError{
		Code:       CodeLockTimeout,
		Kind:       KindOf(CodeLockTimeout),
		Message:    "timed out waiting for a row lock, retry the request",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Err:        err,
	}
}
