// Package obs sets up logging and tracing for the server process.
package obs

import (
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger in production and a text logger
// elsewhere.  Debug records are kept outside production.
func NewLogger(env string) *slog.Logger {
	if env == "prod" || env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
