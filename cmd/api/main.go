package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"relay-chat/config"
	"relay-chat/internal/audit"
	"relay-chat/internal/handler"
	"relay-chat/internal/jobs"
	"relay-chat/internal/observability"
	"relay-chat/internal/outbox"
	"relay-chat/internal/redis"
	"relay-chat/internal/repository"
	"relay-chat/internal/server"
	"relay-chat/internal/services"
	"relay-chat/internal/storage"
	"relay-chat/internal/websocket"
	"relay-chat/pkg/database"
	"relay-chat/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("relay-chat: %v", err)
	}
}

func run() error {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db := database.Connect(cfg, l)
	defer database.Close()
	if err := repository.InitSchema(db); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	redis.Initialize(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	rc := redis.GetClient()
	defer rc.Close()
	if err := redis.Ping(ctx, rc); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	auditor := audit.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, l.Named("audit"))
	defer auditor.Close()
	l.Logger.Info("audit publisher ready", zap.String("mode", audit.Mode(auditor)))

	publisher := redis.NewPublisher(rc)
	presenceStore := redis.NewPresenceStore(rc, publisher, cfg.PresenceMaxAge)
	limitCfg := redis.DefaultRateLimitConfig()
	limitCfg.MessageLimit = cfg.MessageRateLimit
	limiter := redis.NewRateLimiter(rc, limitCfg)
	cache := redis.NewCacheStore(rc, redis.DefaultCacheConfig())

	userRepo := repository.NewUserRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	authService, err := services.NewAuthService(cfg)
	if err != nil {
		return err
	}
	userService := services.NewUserService(userRepo, friendRepo)
	friendService := services.NewFriendService(userRepo, friendRepo)
	conversationService := services.NewConversationService(conversationRepo, messageRepo, cache, l.Named("conversations"))
	messageService := services.NewMessageService(messageRepo)
	uploadService := services.NewUploadService(blobs, cfg.SignedURLTTL)
	presenceService := services.NewPresenceService(userRepo, conversationRepo, presenceStore, l.Named("presence"))

	wsLogger := websocket.NewWebSocketLogger(l.Logger)
	hub := websocket.NewHub(wsLogger)
	if cfg.RedisFanout {
		hub.SetRelay(publisher)
	}

	engine := services.NewDeliveryEngine(services.DeliveryDeps{
		Conversations: conversationService,
		Messages:      messageService,
		Users:         userService,
		Presence:      presenceService,
		Uploads:       uploadService,
		Gateway:       hub,
		Limiter:       limiter,
		Typing:        presenceStore,
		Audit:         outbox.NewRecorder(outboxRepo),
		Log:           l.Named("delivery"),
		GroupChats:    cfg.GroupChatsEnabled,
	})

	scheduler := jobs.NewManager(l.Named("cron"))
	if err := scheduler.Register(cfg.PresenceSweepSpec, jobs.NewPresenceSweepJob(presenceService, cfg.PresenceMaxAge, l.Logger)); err != nil {
		return err
	}
	processor := outbox.NewProcessor(outboxRepo, auditor, l.Named("outbox"))
	if err := scheduler.Register("0 0 * * * *", cron.FuncJob(processor.Prune)); err != nil {
		return err
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Users:         handler.NewUserHandler(userService),
		Friends:       handler.NewFriendHandler(friendService),
		Conversations: handler.NewConversationHandler(conversationService),
		Messages:      handler.NewMessageHandler(conversationService, messageService),
		Uploads:       handler.NewUploadHandler(uploadService),
		WebSocket:     websocket.NewHandler(authService, engine, hub, limiter, wsLogger),
	}, server.Dependencies{
		Auth:    authService,
		Limiter: limiter,
		Ready: func(ctx context.Context) error {
			if err := database.HealthCheck(); err != nil {
				return err
			}
			return redis.Ping(ctx, rc)
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return processor.Run(gctx) })
	if cfg.RedisFanout {
		g.Go(func() error { return websocket.NewRedisBridge(publisher, hub).Run(gctx) })
	}
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	return g.Wait()
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.BlobDriver {
	case "minio":
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	case "s3", "":
		return storage.NewS3Store(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}
