// Package api exposes the risk assessment workflow over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/app"
	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/middleware"
	"github.com/cardiocare-risk-server/internal/records"
	"github.com/cardiocare-risk-server/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	config        domain.ServerConfig
	workflow      *service.Workflow
	records       *records.NotifyingStore
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance serving the workflow of a.
func NewServer(configManager domain.ConfigManager, a *app.App) *Server {
	// Set Gin mode based on environment
	switch {
	case configManager.IsProduction():
		gin.SetMode(gin.ReleaseMode)
	case configManager.IsDevelopment() && configManager.GetConfig().Logging.Level == "debug":
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(a.Logger))
	router.Use(middleware.Recovery(a.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	router.Use(middleware.SessionID())

	server := &Server{
		configManager: configManager,
		config:        *configManager.GetServerConfig(),
		workflow:      a.Workflow,
		records:       a.Records,
		logger:        a.Logger,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/sessions", s.handleCreateSession)
		v1.DELETE("/sessions", s.handleEndSession)

		v1.POST("/assessments", s.handleAssess)

		v1.POST("/records", s.handleSaveRecord)
		v1.GET("/records", s.handleListRecords)
		v1.GET("/records/export", s.handleExportRecords)
		v1.POST("/records/lookup", s.handleLookup)
		v1.POST("/records/verify", s.handleVerify)
		v1.GET("/records/stream", s.handleRecordStream)
	}
}
