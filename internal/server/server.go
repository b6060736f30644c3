package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"relay-chat/config"
	"relay-chat/internal/handler"
	"relay-chat/internal/middleware"
	"relay-chat/internal/observability"
	"relay-chat/internal/transport/httpdto"
	"relay-chat/internal/websocket"
	"relay-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Users         *handler.UserHandler
	Friends       *handler.FriendHandler
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	Uploads       *handler.UploadHandler
	WebSocket     *websocket.Handler
}

// Dependencies are the cross-cutting collaborators of the router.
type Dependencies struct {
	Auth    middleware.TokenParser
	Limiter middleware.APILimiter
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	if l == nil {
		l = logger.GetGlobalLogger()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Dependencies) {
	s.engine.Use(otelgin.Middleware(s.config.ServiceName))
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.CORSOrigins))
	s.engine.Use(observability.HTTPMetricsMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.Ready != nil {
			if err := deps.Ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// the socket authenticates its own handshake from the query string
	s.engine.GET("/ws", handlers.WebSocket.Connect)

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(deps.Auth))
	if deps.Limiter != nil {
		v1.Use(middleware.RateLimitMiddleware(deps.Limiter))
	}

	users := v1.Group("/users")
	{
		users.POST("", handlers.Users.Create)
		users.POST("/onboard", handlers.Users.Onboard)
		users.GET("/me", handlers.Users.Me)
		users.PATCH("/me", handlers.Users.UpdateMe)
		users.GET("/:userId/info", handlers.Users.Info)
	}

	friends := v1.Group("/friends")
	{
		friends.GET("", handlers.Friends.ListFriends)
		friends.POST("/requests", handlers.Friends.SendRequest)
		friends.GET("/requests", handlers.Friends.ListRequests)
		friends.GET("/requests/count", handlers.Friends.CountRequests)
		friends.POST("/requests/accept", handlers.Friends.Accept)
		friends.POST("/requests/refuse", handlers.Friends.Refuse)
	}

	conversations := v1.Group("/conversations")
	{
		conversations.GET("", handlers.Conversations.List)
		conversations.GET("/:id", handlers.Conversations.Header)
		conversations.GET("/:id/messages", handlers.Messages.Page)
		conversations.PATCH("/:id/settings", handlers.Conversations.UpdateSettings)
		conversations.GET("/:id/media", handlers.Conversations.Media)
	}

	v1.POST("/uploads/download", handlers.Uploads.Download)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Errorf("Error in starting the server: %s", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infof("Shutting down, draining for up to %s", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
