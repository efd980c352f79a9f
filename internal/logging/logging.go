// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "galaxy-trader", "logs", "trader.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

// LoggerKey is the context key for the logger.
const LoggerKey ContextKey = "logger"

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithAgent adds an agent ID to the logger context.
func WithAgent(logger zerolog.Logger, agentID string) zerolog.Logger {
	return logger.With().Str("agent", agentID).Logger()
}

// WithPilot adds a pilot ID to the logger context.
func WithPilot(logger zerolog.Logger, pilotID string) zerolog.Logger {
	return logger.With().Str("pilot", pilotID).Logger()
}

// WithSector adds a sector ID to the logger context.
func WithSector(logger zerolog.Logger, sectorID string) zerolog.Logger {
	return logger.With().Str("sector", sectorID).Logger()
}

// LogTrade logs a completed trade.
func LogTrade(logger zerolog.Logger, agentID, ware string, origin, destination string, qty int, profit float64) {
	logger.Info().
		Str("event", "trade").
		Str("agent", agentID).
		Str("ware", ware).
		Str("origin", origin).
		Str("destination", destination).
		Int("quantity", qty).
		Float64("profit", profit).
		Msg("Trade completed")
}

// LogThreat logs a hostile-activity report.
func LogThreat(logger zerolog.Logger, zoneID string, severity int, blocked bool) {
	logger.Info().
		Str("event", "threat").
		Str("zone", zoneID).
		Int("severity", severity).
		Bool("blocked", blocked).
		Msg("Threat reported")
}

// LogReservation logs a reservation event.
func LogReservation(logger zerolog.Logger, key, holderID, outcome string) {
	logger.Debug().
		Str("event", "reservation").
		Str("key", key).
		Str("holder", holderID).
		Str("outcome", outcome).
		Msg("Reservation update")
}

// LogLevelUp logs a pilot level change.
func LogLevelUp(logger zerolog.Logger, pilotID string, level int, gated bool) {
	logger.Info().
		Str("event", "level_up").
		Str("pilot", pilotID).
		Int("level", level).
		Bool("gated", gated).
		Msg("Pilot leveled up")
}
