package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/smukkama/pm25-intent/pkg/config"
)

// New builds the process logger writing to w: colored text in dev, JSON in prod
func New(w io.Writer, cfg config.AppConfig, appName string) *slog.Logger {
	if cfg.Env == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"env", cfg.Env,
	)
}

// Fatal logs err through the default logger and exits with status 1
func Fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
