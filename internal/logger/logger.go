// Package logger builds the structured logger gigq's daemon-facing
// commands (serve, worker) use, leveled and formatted by environment.
package logger

import (
	"io"
	"log/slog"
)

// New builds a slog.Logger writing to w. environment "development" turns
// on debug level and source positions; anything else logs at info level.
// useJSON selects the JSON handler over the text one.
func New(w io.Writer, environment string, useJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if environment == "development" {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}

	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
