package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medscan-console/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreds struct {
	mu      sync.Mutex
	token   string
	cleared int
}

func (f *fakeCreds) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeCreds) ClearAuth(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.cleared++
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClient(t *testing.T, handler http.Handler, creds CredentialSource, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := domain.APIConfig{
		BaseURL:   server.URL,
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		CircuitBreaker: domain.CircuitBreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			FailureThreshold: 3,
		},
	}
	client, err := New(cfg, creds, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return client
}

func defaultTestConfig(baseURL string) domain.APIConfig {
	return domain.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second, RateLimit: 1000}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_AttachesBearerTokenAtCallTime(t *testing.T) {
	var seen []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		_, err := uuid.Parse(r.Header.Get(RequestIDHeader))
		assert.NoError(t, err, "request id should be a uuid")
		writeJSON(w, http.StatusOK, map[string]any{"user_id": "u1", "email": "a@b.com"})
	})
	creds := &fakeCreds{}
	client := newTestClient(t, handler, creds)
	ctx := context.Background()

	_, err := client.Auth.Me(ctx)
	require.NoError(t, err)

	creds.token = "tok"
	_, err = client.Auth.Me(ctx)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Empty(t, seen[0], "no credential means no header")
	assert.Equal(t, "Bearer tok", seen[1])
}

func TestClient_APIErrorDetail(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantFields  int
	}{
		{
			name:        "string detail",
			status:      http.StatusBadRequest,
			body:        `{"detail":"Email already registered"}`,
			wantMessage: "Email already registered",
		},
		{
			name:        "validation list",
			status:      http.StatusUnprocessableEntity,
			body:        `{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address","type":"value_error"},{"loc":["body","password"],"msg":"field required","type":"missing"}]}`,
			wantMessage: "value is not a valid email address",
			wantFields:  2,
		},
		{
			name:   "no structured detail",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			client := newTestClient(t, handler, &fakeCreds{})

			_, err := client.Auth.Register(context.Background(), RegisterRequest{Email: "x", Password: "y"})

			var apiErr *domain.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message())
			assert.Len(t, apiErr.Fields, tt.wantFields)
			assert.Equal(t, "/api/auth/register", apiErr.Path)
			assert.NotEmpty(t, apiErr.RequestID)
		})
	}
}

func TestClient_UnauthorizedClearsSessionAndNavigates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid authentication credentials"})
	})
	creds := &fakeCreds{token: "expired"}
	redirected := 0
	client := newTestClient(t, handler, creds, WithUnauthorizedHandler(func() { redirected++ }))

	_, err := client.Consultations.List(context.Background())

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 1, creds.cleared)
	assert.Empty(t, creds.Token())
	assert.Equal(t, 1, redirected)
}

func TestClient_CircuitBreakerIgnoresClientErrors(t *testing.T) {
	status := http.StatusNotFound
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, status, map[string]string{"detail": "nope"})
	})
	client := newTestClient(t, handler, &fakeCreds{token: "tok"})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.Analysis.Get(ctx, "missing")
		var apiErr *domain.APIError
		require.ErrorAs(t, err, &apiErr)
	}
	assert.Equal(t, 5, calls, "404s must not trip the breaker")

	status = http.StatusInternalServerError
	for i := 0; i < 3; i++ {
		_, err := client.Analysis.Get(ctx, "boom")
		require.Error(t, err)
	}
	_, err := client.Analysis.Get(ctx, "boom")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, 8, calls, "open breaker short-circuits the request")
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := New(domain.APIConfig{BaseURL: url, RateLimit: 100}, &fakeCreds{}, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = client.QA.List(context.Background())
	require.Error(t, err)

	var apiErr *domain.APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(domain.APIConfig{BaseURL: "http://[::1"}, nil)
	assert.Error(t, err)
}
