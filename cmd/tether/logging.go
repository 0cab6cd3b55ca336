package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/germanamz/tether/pkg/engine"
	"github.com/germanamz/tether/pkg/sessionctx"
)

// openLog opens the log destination. "-" is stderr and an empty path
// discards everything. The returned close function is always non-nil.
func openLog(path string) (io.Writer, func() error, error) {
	switch path {
	case "":
		return io.Discard, func() error { return nil }, nil
	case "-":
		return os.Stderr, func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path is a flag value
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return f, f.Close, nil
}

// newLogger builds the slog logger described by cfg. Records carry the
// session id and model from the context.
func newLogger(w io.Writer, cfg engine.LogConfig) (*slog.Logger, error) {
	level, err := engine.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch cfg.Format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(sessionctx.NewHandler(h)), nil
}
