package main

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// newLogger writes diagnostics to stderr: readable text on a terminal,
// JSON when stderr is redirected.
func newLogger(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
