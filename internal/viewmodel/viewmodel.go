// Package viewmodel holds the screen state machines of the console: the
// list/detail pattern shared by analyses, consultations, Q&A sessions and
// reports, plus the auth forms and the dashboard. View-models never hand raw
// errors to the render path; every failure is also recorded as a display
// message in the state snapshot.
package viewmodel

import (
	"context"
	"errors"

	"github.com/medscan-console/internal/domain"
	"github.com/sirupsen/logrus"
)

// Route is a navigation target
type Route string

const (
	RouteHome      Route = "/"
	RouteLogin     Route = "/auth/login"
	RouteDashboard Route = "/dashboard"
)

// Navigator moves the front end to another screen
type Navigator interface {
	Navigate(route Route)
}

// NavigatorFunc adapts a function to the Navigator interface
type NavigatorFunc func(route Route)

// Navigate calls f(route)
func (f NavigatorFunc) Navigate(route Route) { f(route) }

// Session is the part of the session store the view-models depend on
type Session interface {
	IsAuthenticated() bool
	User() *domain.User
	SetAuth(ctx context.Context, user domain.User, token string) error
	ClearAuth(ctx context.Context) error
}

// Deps are shared by every view-model
type Deps struct {
	Session   Session
	Navigator Navigator
	Logger    *logrus.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Navigator == nil {
		d.Navigator = NavigatorFunc(func(Route) {})
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	return d
}

// requireAuth redirects to login when no session exists. Protected screens
// call it before issuing any request.
func (d Deps) requireAuth() error {
	if d.Session == nil || !d.Session.IsAuthenticated() {
		d.Navigator.Navigate(RouteLogin)
		return domain.ErrUnauthenticated
	}
	return nil
}

// displayName is the current user's full name, or fallback
func (d Deps) displayName(fallback string) string {
	if d.Session == nil {
		return fallback
	}
	return d.Session.User().DisplayName(fallback)
}

// DisplayMessage turns an error into the text shown to the user: a local
// validation message, the backend's string detail verbatim, the first
// field-level entry of a backend validation list, or fallback.
func DisplayMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.Message(); msg != "" {
			return msg
		}
	}

	return fallback
}
