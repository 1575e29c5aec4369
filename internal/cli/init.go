// Package cli provides the start-up steps shared by cmd/edufund,
// cmd/edufund-worker and cmd/edufund-export.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"edufund/internal/config"
	"edufund/internal/log"
)

// LoadEnvFile loads .env for local development. A missing file is ignored.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_FORMAT and LOG_LEVEL and
// installs it as the slog default.
func SetupLogger(w io.Writer, cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: component,
		Handler:   log.NewHandler(w, cfg.LogFormat, log.ParseLevel(cfg.LogLevel)),
	})
	log.SetDefault(logger)
	return logger
}

// ExitOnInvalid logs err as a configuration failure and exits. A nil err
// is a no-op.
func ExitOnInvalid(logger *log.Logger, err error) {
	if err == nil {
		return
	}
	logger.Error("Configuration validation failed", log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeConfiguration)
	os.Exit(1)
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
