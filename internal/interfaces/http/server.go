// Package http exposes the review workflow over a JSON API.
// Handlers only translate requests into service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/proposal-review/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Services are the application services served over HTTP
type Services struct {
	Records     service.RecordService
	Approvals   service.ApprovalService
	Adjustments service.AdjustmentService
	Audit       service.AuditService
	Changelog   service.ChangelogService
	Exports     service.ExportService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		api.POST("/records", h.CreateRecord)
		api.GET("/records", h.ListRecords)
		api.GET("/records/:id", h.GetRecord)
		api.PATCH("/records/:id", h.UpdateRecord)
		api.POST("/records/:id/hide", h.HideRecord)
		api.POST("/records/:id/comments", h.AddComment)

		api.POST("/records/:id/workflow", h.StartWorkflow)
		api.GET("/records/:id/workflow", h.GetWorkflowState)
		api.POST("/records/:id/approvals/:approvalId", h.ProcessApproval)

		api.POST("/records/:id/adjustments", h.CreateAdjustment)
		api.GET("/records/:id/adjustments", h.ListAdjustments)
		api.GET("/adjustments/:requestId", h.GetAdjustment)
		api.POST("/adjustments/:requestId/approve", h.ApproveAdjustment)
		api.POST("/adjustments/:requestId/reject", h.RejectAdjustment)
		api.POST("/adjustments/:requestId/reverse", h.ReverseAdjustment)
		api.DELETE("/adjustments/:requestId", h.DeleteAdjustment)

		api.GET("/records/:id/audit", h.GetAuditTrail)
		api.GET("/records/:id/audit/export", h.ExportAuditTrail)
		api.GET("/records/:id/changelog", h.GetChangelog)
		api.GET("/records/:id/changelog/export", h.ExportChangelog)
		api.POST("/records/:id/exports", h.ArchiveExports)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
