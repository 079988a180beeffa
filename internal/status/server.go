// Package status serves the progress of the configuration run over HTTP.
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/KevinKickass/ecconf/internal/config"
	"github.com/KevinKickass/ecconf/internal/interfaces"
	"github.com/KevinKickass/ecconf/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	router   *gin.Engine
	lm       interfaces.LifecycleManager
	counters *Counters
	hub      *Hub
	logger   *zap.Logger
	server   *http.Server
}

// NewServer builds the status API. hub may be nil, which disables the
// event feed.
func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, counters *Counters, hub *Hub, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		lm:       lm,
		counters: counters,
		hub:      hub,
		logger:   logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Status.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start binds the listener synchronously so a busy port fails startup.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("Starting status server", zap.String("address", lis.Addr().String()))
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down status server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleMethodNotAllowed = true
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error("Handler panicked", zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			types.NewErrorResponse(types.CodeInternal, "Internal error", nil))
	}))

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(NewRegistry(s.counters), promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/conf/status", s.getConfStatus)
		if s.hub != nil {
			v1.GET("/ws/events", s.wsEvents)
		}
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeNotFound, "Route not found", c.Request.URL.Path))
	})
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, types.NewErrorResponse(types.CodeMethodNotAllowed, "Method not allowed", c.Request.Method))
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// GET /api/v1/conf/status
func (s *Server) getConfStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.GetCurrentStatus())
}

// GET /api/v1/ws/events
func (s *Server) wsEvents(c *gin.Context) {
	s.hub.ServeWs(c.Writer, c.Request)
}
