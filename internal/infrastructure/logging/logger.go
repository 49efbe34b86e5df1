package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/fleetd/internal/infrastructure/config"
)

// Logger is fleetd's structured logger, a thin wrapper over slog.
// Every entry carries service and version attributes so log
// aggregators can tell fleetd instances apart.
//
// Thread Safety: All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of config.yaml.
// Format json (the default) is for production ingestion, text for
// reading a dev console. Unknown levels fall back to info rather
// than failing startup over a typo.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Build version, stamped on every entry
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return newWithWriter(cfg, version, output)
}

// newWithWriter is New with the destination injected, so tests can
// capture output.
func newWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "fleetd"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel maps a config level string to a slog.Level, defaulting
// to info. Accepts debug, info, warn, warning and error in any case.
func parseLevel(level string) slog.Level {
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

// With returns a child logger carrying extra default attributes,
// typically a component tag:
//
//	mqttLogger := logger.With("component", "mqtt")
//	mqttLogger.Info("connected") // includes component=mqtt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the bootstrap logger used before config.yaml has been
// read: JSON to stdout at info level, version "dev". Once the real
// config is loaded, main replaces it with New.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
