package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"chatapp/config"
	"chatapp/internal/bootstrap"
	"chatapp/internal/events"
	"chatapp/internal/handler"
	"chatapp/internal/redis"
	"chatapp/internal/server"
	"chatapp/internal/services"
	"chatapp/internal/storage"
	"chatapp/internal/websocket"
	"chatapp/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	if err := run(cfg, l); err != nil {
		l.Errorf("Server exited with error: %v", err)
		l.Sync()
		log.Fatal(err)
	}
}

func run(cfg *config.Config, l *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.OpenStore(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = backend.Store.Close(closeCtx)
	}()
	store := backend.Store

	var redisClient *goredis.Client
	if cfg.RedisEnabled {
		redisClient, err = redis.Connect(ctx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer redisClient.Close()
		l.Infof("Connected to redis at %s", cfg.RedisAddr())
	}

	var hubOpts []websocket.HubOption
	var directory services.UserDirectory = store.Users
	var limiter *redis.RateLimiter
	if redisClient != nil {
		relay := events.NewRedisRelay(redis.NewPublisher(redisClient), redis.NewSubscriber(redisClient), l.Named("relay"))
		hubOpts = append(hubOpts, websocket.WithRelay(relay))
		directory = services.NewCachedDirectory(store.Users, redis.NewNameCache(redisClient), cfg.NameCacheTTL, l)
		limiter = redis.NewRateLimiter(redisClient, redis.RateLimitConfig{
			MessageLimit:  cfg.MessageRateLimit,
			MessageWindow: cfg.MessageRateWindow,
		})
	}

	hub := websocket.NewHub(l, hubOpts...)
	go hub.Run(ctx)

	chatService := services.NewChatService(store.Chats, l)
	messageService := services.NewMessageService(store.Messages, store.Chats, hub, services.MessageConfig{
		EditWindow:        cfg.EditWindow,
		RequireContent:    cfg.RequireMessageContent,
		EnforceMembership: cfg.EnforceChatMembership,
		MaxLength:         cfg.MaxMessageLength,
	}, l)
	summaryService := services.NewSummaryService(store.Chats, store.Messages, directory, l)

	var attachments storage.AttachmentStore
	uploadDir := ""
	if cfg.S3Enabled() {
		attachments, err = storage.NewS3Store(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
		})
		if err != nil {
			return err
		}
	} else {
		attachments = storage.NewDiskStore(cfg.UploadDir, "/uploads")
		uploadDir = cfg.UploadDir
	}

	var tokens websocket.TokenVerifier
	if cfg.JWTSecret != "" {
		tokens = services.NewTokenService(cfg.JWTSecret)
	}

	srv := server.New(cfg, l)
	opts := server.Options{Health: store.Ping, UploadDir: uploadDir}
	if limiter != nil {
		opts.MessageLimiter = limiter
	}
	srv.SetupRoutes(&server.Handlers{
		Chat:    handler.NewChatHandler(chatService, summaryService),
		Message: handler.NewMessageHandler(messageService, attachments, int64(cfg.MaxUploadBytes)),
		WebSocket: websocket.NewHandler(hub, messageService,
			websocket.NewRoomAuthorizer(chatService, cfg.EnforceChatMembership),
			tokens,
			websocket.HandlerConfig{SendBuffer: cfg.WSSendBuffer},
			l),
	}, opts)

	return srv.Start(ctx)
}
