// Package errors defines the classified error taxonomy for the LockCase
// backend. Internal error detail is never serialized outward; callers see a
// code and message only.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class.
type Code string

const (
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeMissingParameter  Code = "MISSING_PARAMETER"
	CodeDuplicateIdentity Code = "DUPLICATE_IDENTITY"
	CodeDownstreamFailure Code = "DOWNSTREAM_FAILURE"
	CodeUnknown           Code = "UNKNOWN"
)

// ServiceError is an error carrying a classification and an HTTP status.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is reports whether target is a ServiceError with the same code, so
// errors.Is can match by classification.
func (e *ServiceError) Is(target error) bool {
	var se *ServiceError
	if errors.As(target, &se) {
		return e.Code == se.Code
	}
	return false
}

// Unauthenticated signals a request with no resolvable caller identity.
func Unauthenticated(message string) *ServiceError {
	if message == "" {
		message = "caller identity could not be resolved"
	}
	return &ServiceError{Code: CodeUnauthenticated, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// MissingParameter signals a required input field that is absent.
func MissingParameter(field string) *ServiceError {
	return &ServiceError{
		Code:       CodeMissingParameter,
		Message:    fmt.Sprintf("required parameter %q is missing", field),
		HTTPStatus: http.StatusBadRequest,
	}
}

// DuplicateIdentity signals a signup attempt with an already-registered email.
func DuplicateIdentity(email string) *ServiceError {
	return &ServiceError{
		Code:       CodeDuplicateIdentity,
		Message:    fmt.Sprintf("an identity with email %q already exists", email),
		HTTPStatus: http.StatusConflict,
	}
}

// DownstreamFailure signals a failed or timed-out storage or directory call.
func DownstreamFailure(op string, err error) *ServiceError {
	return &ServiceError{
		Code:       CodeDownstreamFailure,
		Message:    fmt.Sprintf("downstream call failed: %s", op),
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// Unknown classifies anything uncategorized.
func Unknown(err error) *ServiceError {
	return &ServiceError{
		Code:       CodeUnknown,
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// GetServiceError extracts a ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// Classify returns the ServiceError in the chain, or wraps err as Unknown.
func Classify(err error) *ServiceError {
	if se := GetServiceError(err); se != nil {
		return se
	}
	return Unknown(err)
}
