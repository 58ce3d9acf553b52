package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name        string
		err         *APIError
		wantMessage string
		wantError   string
	}{
		{
			name:        "String detail",
			err:         &APIError{StatusCode: 400, Method: "POST", Path: "/api/auth/register", Detail: "Email already registered"},
			wantMessage: "Email already registered",
			wantError:   "POST /api/auth/register: 400: Email already registered",
		},
		{
			name: "Field list",
			err: &APIError{StatusCode: 422, Method: "POST", Path: "/api/auth/login", Fields: []FieldError{
				{Loc: []any{"body", "email"}, Msg: "Field required", Type: "missing"},
				{Loc: []any{"body", "password"}, Msg: "Field required", Type: "missing"},
			}},
			wantMessage: "Field required",
			wantError:   "POST /api/auth/login: 422: Field required",
		},
		{
			name:        "No detail",
			err:         &APIError{StatusCode: 502, Method: "GET", Path: "/api/analysis/history"},
			wantMessage: "",
			wantError:   "GET /api/analysis/history: 502: request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Message(); got != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, got)
			}
			if got := tt.err.Error(); got != tt.wantError {
				t.Errorf("Expected error string %q, got %q", tt.wantError, got)
			}
		})
	}
}

func TestAPIError_IsUnauthorized(t *testing.T) {
	unauthorized := fmt.Errorf("failed to load: %w", &APIError{StatusCode: 401})
	if !errors.Is(unauthorized, ErrUnauthorized) {
		t.Error("Expected a wrapped 401 to match ErrUnauthorized")
	}

	forbidden := &APIError{StatusCode: 403}
	if errors.Is(forbidden, ErrUnauthorized) {
		t.Error("Expected a 403 not to match ErrUnauthorized")
	}
}

func TestFieldError_Location(t *testing.T) {
	f := FieldError{Loc: []any{"body", "items", 2, "name"}}
	if got := f.Location(); got != "body.items.2.name" {
		t.Errorf("Expected body.items.2.name, got %s", got)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("email", "Please enter your email")

	if err.Field != "email" {
		t.Errorf("Expected field email, got %s", err.Field)
	}
	if err.Message != "Please enter your email" {
		t.Errorf("Expected message to be kept, got %s", err.Message)
	}

	expectedError := "validation error for field 'email': Please enter your email"
	if err.Error() != expectedError {
		t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
	}
}

func TestDecodeError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := &DecodeError{Endpoint: "/api/qa/sessions", Reason: "invalid JSON", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("Expected DecodeError to unwrap to its cause")
	}
	if err.Error() != "decode /api/qa/sessions: invalid JSON: unexpected end of JSON input" {
		t.Errorf("Unexpected error string %s", err.Error())
	}

	bare := &DecodeError{Endpoint: "/api/reports/list", Reason: "missing id"}
	if bare.Error() != "decode /api/reports/list: missing id" {
		t.Errorf("Unexpected error string %s", bare.Error())
	}
}
