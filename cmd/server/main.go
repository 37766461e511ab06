package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fxlab/forex-portfolio-go/internal/api"
	"github.com/fxlab/forex-portfolio-go/internal/api/handlers"
	"github.com/fxlab/forex-portfolio-go/internal/cache"
	"github.com/fxlab/forex-portfolio-go/internal/config"
	"github.com/fxlab/forex-portfolio-go/internal/database"
	"github.com/fxlab/forex-portfolio-go/internal/logging"
	"github.com/fxlab/forex-portfolio-go/internal/services"
	"github.com/fxlab/forex-portfolio-go/internal/telemetry"
)

func main() {
	// Local development overrides; missing .env is fine
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logging.ParseLogrusLevel(cfg.LogLevel))
	appLogger := logging.NewStandardLogger(cfg.LogLevel)

	// Initialize telemetry
	if err := telemetry.Init(telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		DSN:         cfg.Telemetry.SentryDSN,
		Environment: cfg.Telemetry.Environment,
		Release:     telemetry.ServiceVersion,
		SampleRate:  cfg.Telemetry.SampleRate,
	}); err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer telemetry.Flush(2 * time.Second)

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	// Wire repositories; price reads go through the Redis cache
	priceRepo := database.NewPriceRepository(db.Pool)
	pickRepo := database.NewPickRepository(db.Pool)

	cacheTTL, err := time.ParseDuration(cfg.Backtest.PriceCacheTTL)
	if err != nil {
		log.Fatalf("Invalid price_cache_ttl: %v", err)
	}
	prices := cache.NewCachedPriceProvider(priceRepo, redis.Client, cacheTTL)

	// Engine services
	backtestSvc := services.NewBacktestService(prices, cfg.Optimizer.Workers)
	scenarioRunner := services.NewScenarioRunner(backtestSvc)
	optimizer := services.NewParameterOptimizer(backtestSvc, cfg.Optimizer.Workers, cfg.Optimizer.TopN)

	backtestHandler := handlers.NewBacktestHandler(
		pickRepo, backtestSvc, scenarioRunner, optimizer,
		cfg.Backtest, cfg.Optimizer,
	)

	// Setup Gin router
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	api.SetupRoutes(router, db, redis, backtestHandler)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		appLogger.LogStartup("forex-portfolio", telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.LogShutdown("forex-portfolio", "signal received")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
