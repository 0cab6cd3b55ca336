// Tether-toolserver is a small demo tool server. It publishes a handful of
// feed tools over streamable HTTP, SSE and WebSocket, or over stdio for the
// command transport.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/germanamz/tether/pkg/engine"
	"github.com/germanamz/tether/pkg/tools/mcpserver"
	"github.com/rs/cors"
)

const version = "0.1.0"

func main() {
	addr := flag.String("addr", "localhost:3000", "listen address for the HTTP transports")
	stdio := flag.Bool("stdio", false, "serve a single session on stdin/stdout instead of HTTP")
	level := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if err := run(*addr, *stdio, *level); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string, stdio bool, level string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lvl, err := engine.ParseLevel(level)
	if err != nil {
		return err
	}
	// stdout carries the protocol in stdio mode, so logs always go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	server := mcpserver.New("tether-toolserver", version)
	server.Register(newFeed().tools()...)

	if stdio {
		logger.Info("serving on stdio")
		return server.Serve(ctx, os.Stdin, os.Stdout)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(server, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", addr, "mcp", "/mcp", "sse", "/sse", "ws", "/ws")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newMux routes each transport to its own path and allows cross-origin
// requests so browser based clients can connect.
func newMux(server *mcpserver.MCPServer, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", server.HTTPHandler())
	mux.Handle("/sse", server.SSEHandler())
	mux.Handle("/ws", server.WebSocketHandler())

	logged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		mux.ServeHTTP(w, r)
	})

	return cors.AllowAll().Handler(logged)
}
