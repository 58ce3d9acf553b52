package gateway

import (
	"context"
	"net/http"

	"github.com/medscan-console/internal/domain"
)

// AuthService covers /api/auth
type AuthService struct {
	client *Client
}

// RegisterRequest is the body of the register endpoint
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginRequest is the body of the login endpoint
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and returns the issued credential
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*domain.AuthResult, error) {
	return s.authenticate(ctx, "/api/auth/register", req)
}

// Login exchanges credentials for a bearer token
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*domain.AuthResult, error) {
	return s.authenticate(ctx, "/api/auth/login", req)
}

func (s *AuthService) authenticate(ctx context.Context, path string, body any) (*domain.AuthResult, error) {
	resp, err := s.client.do(ctx, request{method: http.MethodPost, path: path, jsonBody: body})
	if err != nil {
		return nil, err
	}

	var result domain.AuthResult
	if err := decodeObject(path, resp.body, &result); err != nil {
		return nil, err
	}
	if err := requireField(path, "access_token", result.AccessToken); err != nil {
		return nil, err
	}
	if err := requireField(path, "user.user_id", result.User.UserID); err != nil {
		return nil, err
	}
	return &result, nil
}

// Me returns the user owning the current token
func (s *AuthService) Me(ctx context.Context) (*domain.User, error) {
	const path = "/api/auth/me"
	resp, err := s.client.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}

	var user domain.User
	if err := decodeObject(path, resp.body, &user); err != nil {
		return nil, err
	}
	if err := requireField(path, "user_id", user.UserID); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout notifies the backend; the caller discards the token either way
func (s *AuthService) Logout(ctx context.Context) error {
	_, err := s.client.do(ctx, request{method: http.MethodPost, path: "/api/auth/logout"})
	return err
}
