package viewmodel

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/medscan-console/internal/domain"
	"github.com/medscan-console/pkg/gateway"
	"github.com/sirupsen/logrus"
)

// AuthAPI is the backend surface used by the auth forms
type AuthAPI interface {
	Register(ctx context.Context, req gateway.RegisterRequest) (*domain.AuthResult, error)
	Login(ctx context.Context, req gateway.LoginRequest) (*domain.AuthResult, error)
	Logout(ctx context.Context) error
}

const minPasswordLength = 6

// FormState is a snapshot of an auth form
type FormState struct {
	IsLoading bool
	Error     string
}

type form struct {
	mu    sync.Mutex
	state FormState
	api   AuthAPI
	deps  Deps
}

func (f *form) Snapshot() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *form) reject(verr *domain.ValidationError) error {
	f.mu.Lock()
	f.state.Error = verr.Message
	f.mu.Unlock()
	return verr
}

// authenticate runs a login or register call and stores the session.
// A backend reply with a message is shown as is; a reply without one
// gets rejected, anything else (transport, decoding) gets retry.
func (f *form) authenticate(ctx context.Context, call func(ctx context.Context) (*domain.AuthResult, error), rejected, retry string) error {
	f.mu.Lock()
	if f.state.IsLoading {
		f.mu.Unlock()
		return domain.ErrOperationInFlight
	}
	f.state = FormState{IsLoading: true}
	f.mu.Unlock()

	result, err := call(ctx)
	if err == nil {
		err = f.deps.Session.SetAuth(ctx, result.User, result.AccessToken)
	}

	f.mu.Lock()
	f.state.IsLoading = false
	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) {
			f.state.Error = DisplayMessage(err, rejected)
		} else {
			f.state.Error = retry
		}
		f.mu.Unlock()
		f.deps.Logger.WithError(err).Warn("Authentication failed")
		return err
	}
	f.mu.Unlock()

	f.deps.Logger.WithFields(logrus.Fields{
		"user_id": result.User.UserID,
		"role":    result.User.Role,
	}).Info("Signed in")
	f.deps.Navigator.Navigate(RouteDashboard)
	return nil
}

// LoginForm signs an existing user in
type LoginForm struct{ form }

// NewLoginForm creates the login form
func NewLoginForm(api AuthAPI, deps Deps) *LoginForm {
	return &LoginForm{form{api: api, deps: deps.withDefaults()}}
}

// Submit logs in and navigates to the dashboard on success
func (f *LoginForm) Submit(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return f.reject(domain.NewValidationError("email", "Please enter your email and password"))
	}
	return f.authenticate(ctx, func(ctx context.Context) (*domain.AuthResult, error) {
		return f.api.Login(ctx, gateway.LoginRequest{Email: email, Password: password})
	}, "Login failed. Please check your credentials.", "Login failed. Please try again.")
}

// RegisterInput is the content of the registration form
type RegisterInput struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
}

// RegisterForm creates an account and signs it in
type RegisterForm struct{ form }

// NewRegisterForm creates the registration form
func NewRegisterForm(api AuthAPI, deps Deps) *RegisterForm {
	return &RegisterForm{form{api: api, deps: deps.withDefaults()}}
}

// Submit validates the form locally, registers and navigates to the dashboard
func (f *RegisterForm) Submit(ctx context.Context, in RegisterInput) error {
	if in.Password != in.ConfirmPassword {
		return f.reject(domain.NewValidationError("confirm_password", "Passwords do not match"))
	}
	if len(in.Password) < minPasswordLength {
		return f.reject(domain.NewValidationError("password", "Password must be at least 6 characters"))
	}
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.FullName) == "" {
		return f.reject(domain.NewValidationError("email", "Please enter your name and email"))
	}

	return f.authenticate(ctx, func(ctx context.Context) (*domain.AuthResult, error) {
		return f.api.Register(ctx, gateway.RegisterRequest{
			Email:    strings.TrimSpace(in.Email),
			Password: in.Password,
			FullName: strings.TrimSpace(in.FullName),
		})
	}, "Registration failed. Please check your information.", "Registration failed. Please try again.")
}

// Logout ends the session locally and on the backend, then returns home.
// The local session is cleared even when the backend call fails.
func Logout(ctx context.Context, api AuthAPI, deps Deps) error {
	deps = deps.withDefaults()

	var remoteErr error
	if api != nil && deps.Session.IsAuthenticated() {
		if remoteErr = api.Logout(ctx); remoteErr != nil {
			deps.Logger.WithError(remoteErr).Debug("Backend logout failed")
		}
	}

	if err := deps.Session.ClearAuth(ctx); err != nil {
		return err
	}
	deps.Navigator.Navigate(RouteHome)
	return nil
}
