package viewmodel

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medscan-console/internal/domain"
	"github.com/medscan-console/internal/session"
	"github.com/medscan-console/pkg/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginForm_StoresTokenAndNavigates(t *testing.T) {
	var body string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		body = string(data)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"user_id":"u1","email":"a@b.com","full_name":"Ann","role":"user"},"access_token":"tok"}`))
	}))
	defer ts.Close()

	logger := quietLogger()
	store := session.NewStore(nil, logger)
	client, err := gateway.New(domain.APIConfig{BaseURL: ts.URL, RateLimit: 100}, store, gateway.WithLogger(logger))
	require.NoError(t, err)
	nav := &recordingNavigator{}

	form := NewLoginForm(client.Auth, Deps{Session: store, Navigator: nav, Logger: logger})
	require.NoError(t, form.Submit(context.Background(), "a@b.com", "secret1"))

	assert.JSONEq(t, `{"email":"a@b.com","password":"secret1"}`, body)
	assert.Equal(t, "tok", store.Token())
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, RouteDashboard, nav.Last())
	assert.Equal(t, FormState{}, form.Snapshot())
}

// readOnlyStorage refuses to persist sessions
type readOnlyStorage struct {
	session.Storage
}

func (readOnlyStorage) Save(context.Context, domain.Session) error {
	return errors.New("read-only file system")
}

func TestLoginForm_PersistFailureLeavesSignedOut(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"user_id":"u1","email":"a@b.com","full_name":"Ann","role":"user"},"access_token":"tok"}`))
	}))
	defer ts.Close()

	logger := quietLogger()
	store := session.NewStore(readOnlyStorage{session.NewMemoryStorage()}, logger)
	client, err := gateway.New(domain.APIConfig{BaseURL: ts.URL, RateLimit: 100}, store, gateway.WithLogger(logger))
	require.NoError(t, err)
	nav := &recordingNavigator{}

	form := NewLoginForm(client.Auth, Deps{Session: store, Navigator: nav, Logger: logger})
	require.Error(t, form.Submit(context.Background(), "a@b.com", "secret1"))

	assert.Equal(t, "Login failed. Please try again.", form.Snapshot().Error)
	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, store.Token())
	assert.Empty(t, nav.Last())
}

func TestLoginForm_ErrorMessages(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "ann")
	require.NoError(t, h.store.ClearAuth(context.Background()))

	t.Run("backend detail shown verbatim", func(t *testing.T) {
		form := NewLoginForm(h.client.Auth, h.deps)
		err := form.Submit(context.Background(), "ann@example.com", "wrong")

		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.Equal(t, "Invalid email or password", form.Snapshot().Error)
		assert.False(t, h.store.IsAuthenticated())
		assert.Equal(t, RouteLogin, h.nav.Last())
	})

	t.Run("detail list shows first entry", func(t *testing.T) {
		form := NewLoginForm(fakeAuth{err: &domain.APIError{StatusCode: 422, Fields: []domain.FieldError{
			{Loc: []any{"body", "email"}, Msg: "value is not a valid email address"},
			{Loc: []any{"body", "password"}, Msg: "Field required"},
		}}}, h.deps)
		_ = form.Submit(context.Background(), "x", "y")
		assert.Equal(t, "value is not a valid email address", form.Snapshot().Error)
	})

	t.Run("backend error without detail", func(t *testing.T) {
		form := NewLoginForm(fakeAuth{err: &domain.APIError{StatusCode: 500}}, h.deps)
		_ = form.Submit(context.Background(), "a@b.com", "secret1")
		assert.Equal(t, "Login failed. Please check your credentials.", form.Snapshot().Error)
	})

	t.Run("transport failure", func(t *testing.T) {
		form := NewLoginForm(fakeAuth{err: errors.New("dial tcp: connection refused")}, h.deps)
		_ = form.Submit(context.Background(), "a@b.com", "secret1")
		assert.Equal(t, "Login failed. Please try again.", form.Snapshot().Error)
	})

	t.Run("empty fields never reach the network", func(t *testing.T) {
		before := h.requests.Load()
		form := NewLoginForm(h.client.Auth, h.deps)
		var verr *domain.ValidationError
		assert.ErrorAs(t, form.Submit(context.Background(), " ", ""), &verr)
		assert.Equal(t, before, h.requests.Load())
	})
}

func TestRegisterForm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
		want string
	}{
		{"mismatch", RegisterInput{FullName: "Bo", Email: "bo@example.com", Password: "secret1", ConfirmPassword: "secret2"}, "Passwords do not match"},
		{"short", RegisterInput{FullName: "Bo", Email: "bo@example.com", Password: "abc", ConfirmPassword: "abc"}, "Password must be at least 6 characters"},
		{"missing email", RegisterInput{FullName: "Bo", Password: "secret1", ConfirmPassword: "secret1"}, "Please enter your name and email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := h.requests.Load()
			form := NewRegisterForm(h.client.Auth, h.deps)
			var verr *domain.ValidationError
			require.ErrorAs(t, form.Submit(ctx, tt.in), &verr)
			assert.Equal(t, tt.want, form.Snapshot().Error)
			assert.Equal(t, before, h.requests.Load())
		})
	}

	t.Run("success", func(t *testing.T) {
		form := NewRegisterForm(h.client.Auth, h.deps)
		in := RegisterInput{FullName: "Bo", Email: "bo@example.com", Password: "secret1", ConfirmPassword: "secret1"}
		require.NoError(t, form.Submit(ctx, in))
		assert.True(t, h.store.IsAuthenticated())
		assert.Equal(t, "Bo", h.store.User().FullName)
		assert.Equal(t, RouteDashboard, h.nav.Last())

		// Same email again
		require.NoError(t, h.store.ClearAuth(ctx))
		form = NewRegisterForm(h.client.Auth, h.deps)
		require.Error(t, form.Submit(ctx, in))
		assert.Equal(t, "Email already registered", form.Snapshot().Error)
	})
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "cy")
	token := h.store.Token()
	ctx := context.Background()

	require.NoError(t, Logout(ctx, h.client.Auth, h.deps))
	assert.False(t, h.store.IsAuthenticated())
	assert.Equal(t, RouteHome, h.nav.Last())

	// The backend revoked the old token too
	require.NoError(t, h.store.SetAuth(ctx, domain.User{UserID: "x"}, token))
	_, err := h.client.Auth.Me(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

type fakeAuth struct {
	err error
}

func (f fakeAuth) Register(context.Context, gateway.RegisterRequest) (*domain.AuthResult, error) {
	return nil, f.err
}

func (f fakeAuth) Login(context.Context, gateway.LoginRequest) (*domain.AuthResult, error) {
	return nil, f.err
}

func (f fakeAuth) Logout(context.Context) error { return f.err }
