package cli

import (
	"io"
	"os"
	"strings"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/natefinch/lumberjack"

	"github.com/GabrielNunesIT/event-buffer/internal/config"
)

// SetupLogging creates and configures a logger with the specified level.
// When cfg.File is set, output is also written to that file with size based rotation.
// The returned func closes the log file.
func SetupLogging(level string, cfg config.LogConfig) (logger.ILogger, func()) {
	var out io.Writer = os.Stderr
	closeFn := func() {}

	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(os.Stderr, rotating)
		closeFn = func() { _ = rotating.Close() }
	}

	log := logger.NewConsoleLogger(out)

	switch strings.ToLower(level) {
	case "trace":
		log.SetLevel(logger.LevelTrace)
	case "debug":
		log.SetLevel(logger.LevelDebug)
	case "warn", "warning":
		log.SetLevel(logger.LevelWarning)
	case "error":
		log.SetLevel(logger.LevelError)
	default:
		log.SetLevel(logger.LevelInfo)
	}

	// Set as default logger for global access if needed
	logger.SetDefaultLogger(log)
	logger.SetCtxFallbackLogger(log)

	return log, closeFn
}
