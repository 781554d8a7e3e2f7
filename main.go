package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"lottery-draw-system/config"
	"lottery-draw-system/handlers"
	"lottery-draw-system/metrics"
	"lottery-draw-system/middleware"
	"lottery-draw-system/models"
	"lottery-draw-system/services"
	"lottery-draw-system/utils"
	"lottery-draw-system/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration: ", err)
	}

	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer func() { _ = logger.Sync() }()
	if !cfg.DotEnvLoaded {
		logger.Info("no .env file found, reading environment variables directly")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&models.Activity{},
		&models.Prize{},
		&models.DrawRecord{},
	); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	redisClient, err := utils.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	images, err := utils.NewR2Store(ctx, cfg.R2)
	if err != nil {
		logger.Fatal("failed to initialize R2 client", zap.Error(err))
	}
	var imageStore services.ImageStore
	var localImages *utils.LocalImageStore
	switch {
	case images != nil:
		imageStore = images
	case cfg.Upload.Dir != "":
		localImages, err = utils.NewLocalImageStore(cfg.Upload.Dir, cfg.Upload.URLPrefix)
		if err != nil {
			logger.Fatal("failed to create upload directory", zap.Error(err))
		}
		imageStore = localImages
		logger.Warn("R2 not configured, storing prize images on local disk", zap.String("dir", cfg.Upload.Dir))
	default:
		logger.Warn("R2 not configured, prize image uploads disabled")
	}

	lotteryService := buildLotteryService(cfg, db, redisClient, logger)
	adminService := services.NewAdminService(db, imageStore, logger.Named("admin"))

	sched, err := adminService.StartActivityScheduler(ctx, cfg.ActivitySweepInterval)
	if err != nil {
		logger.Fatal("failed to start activity scheduler", zap.Error(err))
	}
	defer func() { _ = sched.Shutdown() }()

	auditor := workers.NewStockAuditor(db, logger.Named("stock_audit"))
	go workers.PollStock(ctx, auditor, cfg.StockAuditInterval)

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})

	app.Use(middleware.RequestLogger(logger.Named("http")))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders: "Content-Length, Content-Type, Retry-After",
		MaxAge:        86400,
	}))

	if localImages != nil {
		app.Static(cfg.Upload.URLPrefix, cfg.Upload.Dir)
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Only Gateway requests past this point.
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, logger.Named("gateway")))
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.SetupLotteryRoutes(app, lotteryService, adminService, logger)
	handlers.SetupAdminRoutes(app, adminService, logger)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	logger.Info("server running",
		zap.String("port", cfg.Port),
		zap.Bool("redis", redisClient != nil),
		zap.Bool("locks", cfg.Lock.Enabled),
		zap.Duration("stock_audit_interval", cfg.StockAuditInterval))

	<-ctx.Done()
	logger.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
