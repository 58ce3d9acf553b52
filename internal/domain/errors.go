package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the gateway and the view-models
var (
	// ErrUnauthorized is matched by any backend 401 response
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnauthenticated is returned before a request when no session exists
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrOperationInFlight rejects a submission while another one is running
	ErrOperationInFlight = errors.New("another operation is in progress")
	// ErrNoSelection is returned by detail operations without a selected item
	ErrNoSelection = errors.New("nothing selected")
)

// ValidationError represents a local input validation failure.
// It never reaches the network.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// FieldError is one entry of a backend validation error list
type FieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// Location joins the loc path with dots
func (f FieldError) Location() string {
	parts := make([]string, 0, len(f.Loc))
	for _, p := range f.Loc {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ".")
}

// APIError represents a non-2xx backend response
type APIError struct {
	StatusCode int          `json:"status_code"`
	Method     string       `json:"method"`
	Path       string       `json:"path"`
	Detail     string       `json:"detail,omitempty"`
	Fields     []FieldError `json:"fields,omitempty"`
	RequestID  string       `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	msg := e.Message()
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Message returns the server-provided message: the string detail, or the
// first field-level entry when the backend sent a validation list.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if len(e.Fields) > 0 {
		return e.Fields[0].Msg
	}
	return ""
}

// Is makes 401 responses match ErrUnauthorized
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == 401
}

// DecodeError reports a response body that does not match the endpoint schema
type DecodeError struct {
	Endpoint string
	Reason   string
	Err      error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Endpoint, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Endpoint, e.Reason)
}

// Unwrap returns the underlying error
func (e *DecodeError) Unwrap() error { return e.Err }
