package services

import (
	"errors"
	"fmt"
)

// APIError is a business rejection reported by the reseller API.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error [%s]: %s", e.Code, e.Message)
}

// TransportError is returned once every attempt against an endpoint has failed.
type TransportError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("API request to %s failed after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FailureReason turns any reseller failure into a message that is safe to show users.
func FailureReason(err error) string {
	var apiErr *APIError
	var transportErr *TransportError
	switch {
	case errors.As(err, &transportErr):
		return MsgTechnicalDifficulty
	case errors.As(err, &apiErr):
		return apiErr.Message
	}
	return MsgUnexpectedError
}

// FailureCode returns the provider code carried by err, if any.
func FailureCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
