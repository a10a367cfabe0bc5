package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accredit-dashboard/internal/adapters/cache"
	"accredit-dashboard/internal/adapters/http/middleware"
	"accredit-dashboard/internal/adapters/http/routes"
	"accredit-dashboard/internal/adapters/persistence/models"
	"accredit-dashboard/internal/adapters/recordstore"
	"accredit-dashboard/internal/config"
	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/core/services"
	"accredit-dashboard/internal/pkg/logger"
	"accredit-dashboard/internal/pkg/metrics"

	"github.com/gofiber/fiber/v2"

	_ "accredit-dashboard/docs" // Swagger docs
)

// @title Accreditation Dashboard API
// @version 1.0
// @description Dashboard backend for facility and health professional accreditation records

// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Offset-less dates from the record store are read in the dashboard zone
	domain.SetLocalZone(cfg.Timezone)

	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("❌ Failed to build logger: %v", err)
	}
	defer appLog.Sync()

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		appLog.Fatal("failed to connect to database", "error", err)
	}
	defer config.CloseDatabase()

	// Sessions and activity log only; records live in the record store
	if err := models.AutoMigrate(db); err != nil {
		appLog.Fatal("failed to auto migrate", "error", err)
	}
	appLog.Info("database migration completed")

	m := metrics.New()
	breaker := config.NewCircuitBreaker("Record-Store", recordstore.IsBreakerFailure)
	store := recordstore.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, breaker, m)

	deps := routes.Dependencies{
		DB:      db,
		Config:  cfg,
		Store:   store,
		Metrics: m,
		Log:     appLog,
	}

	if cfg.CacheEnabled() {
		client := cache.NewRedisClient(cfg.Cache)
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			appLog.Warn("record cache unreachable, reads fall back to the record store", "addr", cfg.Cache.Addr, "error", err)
		}
		cancel()

		deps.Cache = cache.NewRecordCache(client, cfg.Cache.TTL, m)
		appLog.Info("record cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
	}

	svc := routes.NewServices(deps)

	cronService, err := services.NewCronService(svc.Sessions, svc.Activity, cfg.Cron, cfg.Timezone, appLog)
	if err != nil {
		appLog.Fatal("failed to schedule housekeeping", "error", err)
	}
	cronService.Start()
	defer cronService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Accreditation Dashboard API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes
	routes.Setup(app, deps, svc)

	// Graceful shutdown
	go gracefulShutdown(app, appLog)

	// Start server
	appLog.Info("server starting", "port", cfg.Port, "mode", cfg.AppMode, "upstream", cfg.Upstream.BaseURL)
	if err := app.Listen(":" + cfg.Port); err != nil {
		appLog.Error("server stopped", "error", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App, appLog *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLog.Error("error during shutdown", "error", err)
	}
	appLog.Info("server stopped gracefully")
}
