package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger defines the common logging methods used across the engine.
type Logger interface {
	WithComponent(componentName string) *slog.Logger
	WithOperation(operationName string) *slog.Logger
	WithSymbol(symbol string) *slog.Logger
	WithAlgorithm(algorithm string) *slog.Logger
	WithError(err error) *slog.Logger
	LogStartup(serviceName string, version string, port int)
	LogShutdown(serviceName string, reason string)
	LogBacktestRun(runID string, trades int, durationMs int64)
	Logger() *slog.Logger
}

// StandardLogger provides a standardized logging interface backed by
// a JSON slog handler.
type StandardLogger struct {
	logger Logger
}

// NewStandardLogger creates a new standardized logger for the given
// level string ("debug", "info", "warn", "error").
func NewStandardLogger(logLevel string) *StandardLogger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: getSlogLevel(logLevel),
	}))

	return &StandardLogger{
		logger: &slogLogger{logger: logger},
	}
}

// SetLogger sets the underlying logger implementation.
func (l *StandardLogger) SetLogger(logger Logger) {
	l.logger = logger
}

// WithComponent creates a logger with component context.
func (l *StandardLogger) WithComponent(componentName string) *slog.Logger {
	return l.logger.WithComponent(componentName)
}

// WithOperation creates a logger with operation context.
func (l *StandardLogger) WithOperation(operationName string) *slog.Logger {
	return l.logger.WithOperation(operationName)
}

// WithSymbol creates a logger with symbol context.
func (l *StandardLogger) WithSymbol(symbol string) *slog.Logger {
	return l.logger.WithSymbol(symbol)
}

// WithAlgorithm creates a logger with algorithm context.
func (l *StandardLogger) WithAlgorithm(algorithm string) *slog.Logger {
	return l.logger.WithAlgorithm(algorithm)
}

// WithError creates a logger with error context.
func (l *StandardLogger) WithError(err error) *slog.Logger {
	return l.logger.WithError(err)
}

// LogStartup logs application startup information.
func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.logger.LogStartup(serviceName, version, port)
}

// LogShutdown logs application shutdown information.
func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.logger.LogShutdown(serviceName, reason)
}

// LogBacktestRun logs a completed backtest run in a standardized format.
func (l *StandardLogger) LogBacktestRun(runID string, trades int, durationMs int64) {
	l.logger.LogBacktestRun(runID, trades, durationMs)
}

// Logger returns the underlying *slog.Logger.
func (l *StandardLogger) Logger() *slog.Logger {
	return l.logger.Logger()
}

// getSlogLevel converts string level to slog.Level
func getSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogrusLevel converts string level to logrus.Level
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// slogLogger is the default implementation that uses slog directly.
type slogLogger struct {
	logger *slog.Logger
}

func (s *slogLogger) WithComponent(componentName string) *slog.Logger {
	return s.logger.With("component", componentName)
}

func (s *slogLogger) WithOperation(operationName string) *slog.Logger {
	return s.logger.With("operation", operationName)
}

func (s *slogLogger) WithSymbol(symbol string) *slog.Logger {
	return s.logger.With("symbol", symbol)
}

func (s *slogLogger) WithAlgorithm(algorithm string) *slog.Logger {
	return s.logger.With("algorithm", algorithm)
}

func (s *slogLogger) WithError(err error) *slog.Logger {
	return s.logger.With("error", err.Error())
}

func (s *slogLogger) LogStartup(serviceName string, version string, port int) {
	s.logger.Info("Application startup",
		"service", serviceName,
		"version", version,
		"port", port,
		"event", "startup",
	)
}

func (s *slogLogger) LogShutdown(serviceName string, reason string) {
	s.logger.Info("Application shutdown",
		"service", serviceName,
		"reason", reason,
		"event", "shutdown",
	)
}

func (s *slogLogger) LogBacktestRun(runID string, trades int, durationMs int64) {
	s.logger.Info("Backtest run completed",
		"run_id", runID,
		"trades", trades,
		"duration_ms", durationMs,
		"event", "backtest",
	)
}

func (s *slogLogger) Logger() *slog.Logger {
	return s.logger
}
