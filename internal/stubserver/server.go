// Package stubserver is an in-memory implementation of the backend HTTP
// surface the console consumes. It performs no inference: analyses,
// specialist opinions and answers are canned. It backs local development
// and the end-to-end tests of the client packages.
package stubserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medscan-console/internal/domain"
	"github.com/sirupsen/logrus"
)

// Server represents the stub HTTP server
type Server struct {
	router *gin.Engine
	server *http.Server
	store  *store
	hub    *hub
	logger *logrus.Logger
}

// New creates a stub server with empty state
func New(logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	useJSONFieldNames()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(accessLog(logger))
	router.Use(corsMiddleware())
	router.Use(securityHeaders())

	s := &Server{
		router: router,
		store:  newStore(),
		hub:    newHub(logger),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler, for mounting in httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on the configured address until ctx is cancelled
func (s *Server) Start(ctx context.Context, cfg domain.StubConfig) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("Stub backend listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/api/health", s.handleHealth)
	s.router.NoRoute(func(c *gin.Context) {
		abortDetail(c, http.StatusNotFound, "Not Found")
	})

	auth := s.router.Group("/api/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
		auth.GET("/me", s.bearerAuth(), s.handleMe)
		auth.POST("/logout", s.bearerAuth(), s.handleLogout)
	}

	analysis := s.router.Group("/api/analysis", s.bearerAuth())
	{
		analysis.POST("/upload", s.handleUpload)
		analysis.POST("/analyze", s.handleAnalyze)
		analysis.GET("/history", s.handleAnalysisHistory)
		analysis.GET("/:id", s.handleGetAnalysis)
		analysis.POST("/:id/report", s.handleAnalysisReport)
	}

	consultation := s.router.Group("/api/consultation", s.bearerAuth())
	{
		consultation.POST("/create", s.handleCreateConsultation)
		consultation.GET("/rooms", s.handleListConsultations)
		consultation.GET("/:id", s.handleGetConsultation)
		consultation.POST("/:id/message", s.handleConsultationMessage)
		consultation.POST("/:id/start", s.handleStartConsultation)
		consultation.POST("/:id/auto-complete", s.handleAutoComplete)
		consultation.GET("/:id/ws", s.handleConsultationWS)
	}

	qa := s.router.Group("/api/qa", s.bearerAuth())
	{
		qa.POST("/create", s.handleCreateQASession)
		qa.GET("/sessions", s.handleListQASessions)
		qa.POST("/:id/question", s.handleAskQuestion)
		qa.GET("/:id/history", s.handleQAHistory)
	}

	reports := s.router.Group("/api/reports", s.bearerAuth())
	{
		reports.GET("/list", s.handleListReports)
		reports.POST("/generate", s.handleGenerateReport)
		reports.GET("/:id", s.handleGetReport)
		reports.GET("/:id/download", s.handleDownloadReport)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func currentUser(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
