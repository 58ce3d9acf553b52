package viewmodel

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medscan-console/internal/domain"
	"github.com/medscan-console/internal/session"
	"github.com/medscan-console/internal/stubserver"
	"github.com/medscan-console/pkg/gateway"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type recordingNavigator struct {
	mu     sync.Mutex
	routes []Route
}

func (n *recordingNavigator) Navigate(route Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) Last() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}

// harness wires the real gateway and session store to an in-memory backend
type harness struct {
	ts       *httptest.Server
	store    *session.Store
	client   *gateway.Client
	nav      *recordingNavigator
	deps     Deps
	requests atomic.Int64

	mu         sync.Mutex
	authHeader []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := quietLogger()
	h := &harness{nav: &recordingNavigator{}}

	backend := stubserver.New(logger).Handler()
	h.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.requests.Add(1)
		h.mu.Lock()
		h.authHeader = append(h.authHeader, r.Header.Get("Authorization"))
		h.mu.Unlock()
		backend.ServeHTTP(w, r)
	}))
	t.Cleanup(h.ts.Close)

	h.store = session.NewStore(session.NewMemoryStorage(), logger)

	client, err := gateway.New(domain.APIConfig{
		BaseURL:   h.ts.URL,
		Timeout:   5 * time.Second,
		RateLimit: 1000,
	}, h.store,
		gateway.WithLogger(logger),
		gateway.WithUnauthorizedHandler(func() { h.nav.Navigate(RouteLogin) }),
	)
	require.NoError(t, err)
	h.client = client

	h.deps = Deps{Session: h.store, Navigator: h.nav, Logger: logger}
	return h
}

// signIn registers a user on the backend and stores the session
func (h *harness) signIn(t *testing.T, fullName string) domain.User {
	t.Helper()
	ctx := context.Background()
	res, err := h.client.Auth.Register(ctx, gateway.RegisterRequest{
		Email:    fullName + "@example.com",
		Password: "secret1",
		FullName: fullName,
	})
	require.NoError(t, err)
	require.NoError(t, h.store.SetAuth(ctx, res.User, res.AccessToken))
	return res.User
}

func (h *harness) lastAuthHeader() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.authHeader) == 0 {
		return ""
	}
	return h.authHeader[len(h.authHeader)-1]
}

// newSignedInStore returns a memory-backed store holding a session for fullName
func newSignedInStore(t *testing.T, fullName string) *session.Store {
	t.Helper()
	store := session.NewStore(session.NewMemoryStorage(), quietLogger())
	require.NoError(t, store.SetAuth(context.Background(), domain.User{UserID: "u1", FullName: fullName}, "tok"))
	return store
}

// analyzeImage uploads a small PNG and runs the analysis on the backend
func (h *harness) analyzeImage(t *testing.T, filename string) domain.AnalysisRecord {
	t.Helper()
	ctx := context.Background()
	uploaded, err := h.client.Analysis.Upload(ctx, filename, bytes.NewReader(tinyPNG(t)))
	require.NoError(t, err)
	record, err := h.client.Analysis.Analyze(ctx, domain.AnalyzeRequest{
		Filename:  uploaded.Filename,
		ImageData: uploaded.ImageData,
	})
	require.NoError(t, err)
	return *record
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
