package telemetry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	// Service information
	ServiceName    = "github.com/fxlab/forex-portfolio-go"
	ServiceVersion = "1.0.0"
)

// Config holds configuration for telemetry
type Config struct {
	Enabled     bool
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:     true,
		DSN:         "", // Should be provided via env
		Environment: "development",
		Release:     ServiceVersion,
		SampleRate:  0.2,
	}
}

// Init initializes Sentry
func Init(config Config) error {
	if !config.Enabled {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.DSN,
		Environment:      config.Environment,
		Release:          config.Release,
		TracesSampleRate: config.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}

	return nil
}

// CaptureError reports an error with a category tag.
func CaptureError(err error, category string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("category", category)
		sentry.CaptureException(err)
	})
}

// Flush flushes buffered events
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// Shutdown flushes any pending events before exit
func Shutdown() error {
	sentry.Flush(2 * time.Second)
	return nil
}

// Logger returns the global slog.Logger instance for application logging
func Logger() *slog.Logger {
	return slog.Default()
}
