package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/xaitan80/rawhttpd/internal/request"
	"github.com/xaitan80/rawhttpd/internal/router"
	"github.com/xaitan80/rawhttpd/internal/server"
	"github.com/xaitan80/rawhttpd/internal/store"
	"github.com/xaitan80/rawhttpd/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	host := flag.String("host", server.DefaultHost, "address to listen on")
	port := flag.Int("port", server.DefaultPort, "port to listen on")
	readBuf := flag.Int("read-buffer", request.DefaultBufferSize, "bytes read from each connection")
	maxConns := flag.Int64("max-conns", 0, "concurrent connection handlers; 0 means unbounded")
	ioKind := flag.String("io", string(transport.KindNet), "connection I/O backend: net or uring")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	logJSON := flag.Bool("log-json", false, "log as JSON instead of text")
	flag.Parse()

	logger, err := newLogger(*logLevel, *logJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	backend, err := transport.NewBackend(transport.Kind(*ioKind))
	if err != nil {
		logger.Error("transport", "error", err)
		os.Exit(1)
	}

	records := store.New()
	rt := router.New(records, logger)

	srv, err := server.Serve(server.Config{
		Addr:           net.JoinHostPort(*host, strconv.Itoa(*port)),
		ReadBufferSize: *readBuf,
		Dispatcher:     server.NewDispatcher(*maxConns),
		Backend:        backend,
		Logger:         logger,
	}, rt.Handle)
	if err != nil {
		_ = backend.Close()
		logger.Error("Error starting server", "error", err)
		os.Exit(1)
	}
	logger.Info("Server is running", "url", fmt.Sprintf("http://localhost:%d", *port), "addr", srv.Addr().String(), "io", *ioKind)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	logger.Info("Server gracefully stopped", "records", records.Len())
}

func newLogger(level string, asJSON bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}
