package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strconv"
	"syscall"

	"go-dispatch-ws/internal/cache"
	"go-dispatch-ws/internal/config"
	"go-dispatch-ws/internal/handler"
	"go-dispatch-ws/internal/repository"
	"go-dispatch-ws/internal/repository/memory"
	"go-dispatch-ws/internal/report"
	"go-dispatch-ws/internal/service"
	"go-dispatch-ws/internal/ws"
	"go-dispatch-ws/pkg/database"
	"go-dispatch-ws/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Record store
	store, err := openStore(cfg.Database, zlog)
	if err != nil {
		zlog.Fatal("Failed to open record store", zap.Error(err))
	}

	// 3. Optional collaborators
	var statsCache service.StatsCache
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			zlog.Fatal("Failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		statsCache = cache.NewStatsCache(rdb, "", cfg.Redis.StatsTTL)
		zlog.Info("Statistics cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	var archiver service.Archiver
	a, err := report.NewArchiver(ctx, report.MinIOConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		zlog.Fatal("Failed to init reconciliation archive", zap.Error(err))
	}
	if a != nil {
		archiver = a
		zlog.Info("Reconciliation archive enabled", zap.String("bucket", cfg.MinIO.Bucket))
	}

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub(zlog)
	go wsHub.Run(ctx)

	// 5. Dependency Injection (Wiring Layers)
	dispatchService := service.NewDispatchService(store, wsHub, statsCache, archiver, zlog)
	scanService := service.NewScanService(store, wsHub, zlog)
	statsService := service.NewStatisticsService(store, statsCache, zlog)

	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expire)

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: cfg.Server.AppName,
	})

	// Middleware
	app.Use(logger.New())  // Logging request
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.Server.AllowOrigins}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 7. Routes
	handler.RegisterRoutes(app, tokens, handler.Handlers{
		Dispatch:   handler.NewDispatchHandler(dispatchService, zlog),
		Scan:       handler.NewScanHandler(scanService, zlog),
		Statistics: handler.NewStatisticsHandler(statsService, zlog),
		WS:         handler.NewWSHandler(wsHub),
	})

	// 8. Graceful Shutdown
	go func() {
		addr := ":" + strconv.Itoa(cfg.Server.Port)
		if err := app.Listen(addr); err != nil {
			zlog.Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	zlog.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}

	zlog.Info("Server exited")
}

func openStore(cfg config.DatabaseConfig, zlog *zap.Logger) (repository.Store, error) {
	if cfg.Driver == "memory" {
		zlog.Warn("Using in-memory record store; data is lost on restart")
		return memory.NewStore(), nil
	}

	db, err := database.ConnectDB(database.Config{
		DSN:             cfg.DSN(),
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		LogSQL:          cfg.LogSQL,
	})
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	zlog.Info("Connected to database")
	return repository.NewStore(db), nil
}
