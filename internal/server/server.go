package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatapp/config"
	"chatapp/internal/handler"
	"chatapp/internal/middleware"
	"chatapp/internal/transport/httpdto"
	"chatapp/internal/websocket"
	"chatapp/pkg/logger"
)

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
	Chat      *handler.ChatHandler
	Message   *handler.MessageHandler
	WebSocket *websocket.Handler
}

// Options carries the optional pieces of the route setup.
type Options struct {
	// Health reports whether storage is reachable.
	Health func(ctx context.Context) error
	// MessageLimiter guards POST /messages/send when set.
	MessageLimiter middleware.MessageLimiter
	// UploadDir is served under /uploads when set.
	UploadDir string
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	switch cfg.AppMode {
	case ReleaseMode:
		gin.SetMode(gin.ReleaseMode)
	case TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery(l))

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

func (s *Server) SetupRoutes(handlers *Handlers, opts Options) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.CORSOrigins()))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if opts.Health != nil {
			if err := opts.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	if opts.UploadDir != "" {
		s.engine.Static("/uploads", opts.UploadDir)
	}

	chats := s.engine.Group("/chats")
	{
		chats.GET("/user/:userId", handlers.Chat.ListForUser)
		chats.POST("/create", handlers.Chat.Create)
		chats.GET("/:chatId", handlers.Chat.Get)
	}

	send := []gin.HandlerFunc{handlers.Message.Send}
	if opts.MessageLimiter != nil {
		send = append([]gin.HandlerFunc{middleware.MessageRateLimitMiddleware(opts.MessageLimiter, s.logger)}, send...)
	}

	messages := s.engine.Group("/messages")
	{
		messages.POST("/send", send...)
		messages.GET("/chat/:chatId", handlers.Message.ListActive)
		messages.GET("/:messageId", handlers.Message.Get)
		messages.PUT("/edit/:messageId", handlers.Message.Edit)
		messages.DELETE("/delete/:messageId", handlers.Message.Delete)
	}

	if handlers.WebSocket != nil {
		s.engine.GET("/ws", handlers.WebSocket.Connect)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("error in starting the server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
