package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"agentwatch/internal/handler"
	"agentwatch/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers are the route handlers the server mounts.
type Handlers struct {
	Health       handler.HealthHandler
	Analytics    handler.AnalyticsHandler
	Messages     handler.MessageHandler
	Interactions handler.InteractionHandler
	Patterns     handler.PatternHandler
	Growth       handler.GrowthHandler
	Commands     handler.CommandHandler
	Auth         handler.AuthHandler
}

type Server struct {
	router    *gin.Engine
	handlers  Handlers
	jwtSecret []byte
	logger    *zap.Logger

	mu  sync.Mutex
	srv *http.Server
}

func NewServer(handlers Handlers, jwtSecret []byte, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors())

	s := &Server{
		router:    router,
		handlers:  handlers,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.Health.HealthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/agents", s.handlers.Analytics.GetAgents)
		api.GET("/analytics/daily", s.handlers.Analytics.GetDailyActivity)
		api.GET("/analytics/tags", s.handlers.Analytics.GetTopTags)
		api.GET("/analytics/behavior", s.handlers.Analytics.GetBehavior)

		api.GET("/messages/:type/:id", s.handlers.Messages.GetMessage)

		api.GET("/interactions", s.handlers.Interactions.GetInteractions)
		api.GET("/interactions/graph", s.handlers.Interactions.GetGraph)

		api.GET("/patterns", s.handlers.Patterns.GetPatterns)
		api.GET("/growth", s.handlers.Growth.GetGrowth)

		api.POST("/ingest", s.handlers.Commands.Ingest)
		api.POST("/detection/run", s.handlers.Commands.RunDetection)
		api.POST("/cache/reload", s.handlers.Commands.ReloadCache)

		api.POST("/auth/login", s.handlers.Auth.Login)
	}

	// Operator routes
	operator := s.router.Group("/api")
	operator.Use(middleware.AuthMiddleware(s.jwtSecret, s.logger))
	{
		operator.PUT("/patterns/:id/status", s.handlers.Patterns.UpdatePatternStatus)
	}
}

// Start serves on port until Shutdown is called.
func (s *Server) Start(port string) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.logger.Info("Server starting", zap.String("address", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
