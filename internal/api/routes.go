package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fxlab/forex-portfolio-go/internal/api/handlers"
	"github.com/fxlab/forex-portfolio-go/internal/database"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient, backtest *handlers.BacktestHandler) {
	// Health check endpoint
	router.GET("/health", healthCheck(db, redis))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		bt := v1.Group("/backtest")
		{
			bt.POST("/run", backtest.RunBacktest)
			bt.POST("/scenarios", backtest.CompareScenarios)
			bt.POST("/algorithms", backtest.CompareAlgorithms)
			bt.POST("/optimize", backtest.Optimize)
			bt.POST("/permutations", backtest.PermutationScan)
			bt.GET("/scenario-catalog", backtest.GetScenarioCatalog)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		// Check database health
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Database = "error"
			response.Status = "degraded"
		}

		// Check Redis health
		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}

		status := http.StatusOK
		if response.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, response)
	}
}
