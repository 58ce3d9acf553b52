// Package gateway is the typed client for the medscan backend API.
//
// Every call resolves one documented path against the configured base URL,
// attaches the bearer credential read from the CredentialSource at call time,
// and decodes the JSON response into domain types. Non-2xx responses become
// *domain.APIError; a 401 from any endpoint clears the session and invokes the
// unauthorized handler before the error is returned.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medscan-console/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the per-call correlation id
const RequestIDHeader = "X-Request-ID"

// ErrBackendUnavailable is returned while the circuit breaker is open
var ErrBackendUnavailable = errors.New("backend unavailable")

// CredentialSource supplies the bearer token and clears it on 401.
// *session.Store satisfies it.
type CredentialSource interface {
	Token() string
	ClearAuth(ctx context.Context) error
}

// Client is the API gateway client
type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	rateLimit      *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	creds          CredentialSource
	onUnauthorized func()
	logger         *logrus.Logger

	Auth          *AuthService
	Analysis      *AnalysisService
	Consultations *ConsultationService
	QA            *QAService
	Reports       *ReportService
}

// Option configures a Client
type Option func(*Client)

// WithUnauthorizedHandler registers the global reaction to a 401 response,
// typically navigation to the login entry point.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a gateway client
func New(cfg domain.APIConfig, creds CredentialSource, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.CircuitBreaker.FailureThreshold == 0 {
		cfg.CircuitBreaker.FailureThreshold = 5
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}

	c := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		rateLimit:  rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		creds:      creds,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cbSettings := gobreaker.Settings{
		Name:        "MedscanAPI",
		MaxRequests: cfg.CircuitBreaker.MaxRequests,
		Interval:    cfg.CircuitBreaker.Interval,
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CircuitBreaker.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
		// Client errors are the caller's problem, not a sign of an unhealthy backend
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *domain.APIError
			return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker(cbSettings)

	c.Auth = &AuthService{client: c}
	c.Analysis = &AnalysisService{client: c}
	c.Consultations = &ConsultationService{client: c}
	c.QA = &QAService{client: c}
	c.Reports = &ReportService{client: c}
	return c, nil
}

// BaseURL returns the resolved backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// request describes a single backend call
type request struct {
	method      string
	path        string
	query       url.Values
	jsonBody    any
	body        io.Reader
	contentType string
}

// response is a successful (2xx) backend response
type response struct {
	status int
	header http.Header
	body   []byte
}

// do executes req with pacing, the circuit breaker and the 401 policy
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	requestID := httpReq.Header.Get(RequestIDHeader)

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(httpReq)
	})

	fields := logrus.Fields{
		"method":     req.method,
		"path":       req.path,
		"request_id": requestID,
		"latency":    time.Since(start).String(),
	}

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.WithFields(fields).Warn("Request rejected by circuit breaker")
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}

		var apiErr *domain.APIError
		if errors.As(err, &apiErr) {
			apiErr.RequestID = requestID
			fields["status"] = apiErr.StatusCode
			c.logger.WithFields(fields).Debug("Backend returned error")
			if apiErr.StatusCode == http.StatusUnauthorized {
				c.handleUnauthorized(ctx)
			}
			return nil, apiErr
		}

		c.logger.WithFields(fields).WithError(err).Debug("Request failed")
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}

	resp := result.(*response)
	fields["status"] = resp.status
	c.logger.WithFields(fields).Debug("Request completed")
	return resp, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req request) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + req.path
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	body := req.body
	contentType := req.contentType
	if req.jsonBody != nil {
		data, err := json.Marshal(req.jsonBody)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, uuid.NewString())

	// Read at call time: a token change only affects requests issued afterwards
	if c.creds != nil {
		if token := c.creds.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

func (c *Client) send(httpReq *http.Request) (*response, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(httpReq, resp.StatusCode, body)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

func (c *Client) handleUnauthorized(ctx context.Context) {
	if c.creds != nil {
		if err := c.creds.ClearAuth(ctx); err != nil {
			c.logger.WithError(err).Warn("Failed to clear session after 401")
		}
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// parseAPIError decodes a FastAPI style error body: {"detail": "reason"} or
// {"detail": [{"loc": [...], "msg": "...", "type": "..."}]}
func parseAPIError(req *http.Request, status int, body []byte) *domain.APIError {
	apiErr := &domain.APIError{
		StatusCode: status,
		Method:     req.Method,
		Path:       req.URL.Path,
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		apiErr.Detail = detail
		return apiErr
	}

	var fields []domain.FieldError
	if err := json.Unmarshal(payload.Detail, &fields); err == nil {
		apiErr.Fields = fields
	}
	return apiErr
}
