package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/educlass-api/internal/config"
	"github.com/noah-isme/educlass-api/internal/database"
	"github.com/noah-isme/educlass-api/internal/handler"
	"github.com/noah-isme/educlass-api/internal/middleware"
	"github.com/noah-isme/educlass-api/internal/repository"
	"github.com/noah-isme/educlass-api/internal/router"
	"github.com/noah-isme/educlass-api/internal/service"
	"github.com/noah-isme/educlass-api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	probes := map[string]handler.HealthProbe{"database": databaseProbe(db)}

	var (
		redisClient *redis.Client
		kv          storage.KeyValue = storage.NewMemory()
	)
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		kv = storage.NewRedis(redisClient)
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Warn().Msg("redis url not set; device storage kept in memory and dashboards uncached")
	}
	kv = storage.WithPrefix(kv, cfg.StorageNamespace)

	var publisher service.TransitionPublisher = service.NewLogTransitionPublisher(logger)
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		publisher = service.NewNATSTransitionPublisher(natsConn, cfg.EventsSubject)
		probes["nats"] = natsProbe(natsConn)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	batchRepo := repository.NewBatchRepository(db)
	chatRepo := repository.NewSessionChatRepository(db)

	authService := service.NewAuthService(cfg.JWTSecret, cfg.TokenTTL, cfg.AuthLatency, logger)
	batchService := service.NewBatchService(batchRepo, validate, service.NewStorageClipboard(kv), cfg.BatchLatency, logger)
	liveSessionService := service.NewLiveSessionService(batchRepo, chatRepo, logger)
	dashboardService := service.NewDashboardService(batchRepo, liveSessionService, redisClient, cfg.DashboardCacheTTL, logger)
	navigationService := service.NewNavigationService(service.NavigationDeps{
		Storage:    kv,
		PersistKey: cfg.PersistKey,
		Registry:   batchRepo,
		Auth:       authService,
		Batches:    batchService,
		Dashboards: dashboardService,
		Live:       liveSessionService,
		Publisher:  publisher,
	}, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		NavigationHandler:  handler.NewNavigationHandler(navigationService, validate, logger),
		BatchHandler:       handler.NewBatchHandler(batchService, dashboardService, validate, logger),
		DashboardHandler:   handler.NewDashboardHandler(dashboardService, logger),
		LiveSessionHandler: handler.NewLiveSessionHandler(navigationService, liveSessionService, validate, logger),
		Identities:         navigationService,
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:       probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func databaseProbe(db *gorm.DB) handler.HealthProbe {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func natsProbe(conn *nats.Conn) handler.HealthProbe {
	return func(context.Context) error {
		if !conn.IsConnected() {
			return nats.ErrConnectionClosed
		}
		return nil
	}
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
