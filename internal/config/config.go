package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Backtest    BacktestConfig  `mapstructure:"backtest"`
	Optimizer   OptimizerConfig `mapstructure:"optimizer"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BacktestConfig carries the default portfolio parameters applied when
// a request leaves a field unset.
type BacktestConfig struct {
	TakeProfitPips  float64 `mapstructure:"take_profit_pips"`
	StopLossPips    float64 `mapstructure:"stop_loss_pips"`
	MaxHoldDays     int     `mapstructure:"max_hold_days"`
	InitialCapital  float64 `mapstructure:"initial_capital"`
	Leverage        int     `mapstructure:"leverage"`
	SpreadPips      float64 `mapstructure:"spread_pips"`
	PositionSizePct float64 `mapstructure:"position_size_pct"`
	MaxPositions    int     `mapstructure:"max_positions"`
	PriceCacheTTL   string  `mapstructure:"price_cache_ttl"`
}

// OptimizerConfig bounds the grid search.
type OptimizerConfig struct {
	TakeProfitGrid []float64 `mapstructure:"take_profit_grid"`
	StopLossGrid   []float64 `mapstructure:"stop_loss_grid"`
	HoldDaysGrid   []int     `mapstructure:"hold_days_grid"`
	Workers        int       `mapstructure:"workers"`
	TopN           int       `mapstructure:"top_n"`
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	SentryDSN   string  `mapstructure:"sentry_dsn"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Environment string  `mapstructure:"environment"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("telemetry.sentry_dsn", "SENTRY_DSN"); err != nil {
		return nil, fmt.Errorf("failed to bind SENTRY_DSN environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if config.Optimizer.Workers < 1 {
		config.Optimizer.Workers = 1
	}

	return &config, nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "forex_portfolio")
	viper.SetDefault("database.sslmode", "disable")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Backtest defaults
	viper.SetDefault("backtest.take_profit_pips", 50.0)
	viper.SetDefault("backtest.stop_loss_pips", 30.0)
	viper.SetDefault("backtest.max_hold_days", 10)
	viper.SetDefault("backtest.initial_capital", 10000.0)
	viper.SetDefault("backtest.leverage", 10)
	viper.SetDefault("backtest.spread_pips", 1.5)
	viper.SetDefault("backtest.position_size_pct", 3.0)
	viper.SetDefault("backtest.max_positions", 10)
	viper.SetDefault("backtest.price_cache_ttl", "15m")

	// Optimizer
	viper.SetDefault("optimizer.take_profit_grid", []float64{10, 20, 30, 50, 75, 100, 150, 200})
	viper.SetDefault("optimizer.stop_loss_grid", []float64{10, 20, 30, 50, 75, 100})
	viper.SetDefault("optimizer.hold_days_grid", []int{1, 2, 3, 5, 10, 15, 20})
	viper.SetDefault("optimizer.workers", 4)
	viper.SetDefault("optimizer.top_n", 10)

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.sentry_dsn", "")
	viper.SetDefault("telemetry.sample_rate", 0.2)
	viper.SetDefault("telemetry.environment", "development")
}
