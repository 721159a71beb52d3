package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"
)

// Config holds HTTP server configuration
type Config struct {
	// Server address (host:port). Port 0 picks a free port.
	Addr string

	// Logger for structured logging
	Logger *slog.Logger

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Zero leaves long downloads unbounded.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration

	// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
	MaxHeaderBytes int

	// TLS configuration
	TLSCertFile string
	TLSKeyFile  string

	// ShutdownTimeout is the maximum duration for graceful shutdown
	ShutdownTimeout time.Duration

	// Signals that trigger shutdown. Empty means only ctx cancellation does.
	Signals []os.Signal
}

// DefaultConfig returns a default server configuration
func DefaultConfig(addr string) *Config {
	return &Config{
		Addr:            addr,
		ReadTimeout:     15 * time.Second,
		IdleTimeout:     60 * time.Second,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: 30 * time.Second,
		Signals:         []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// New creates a new HTTP server with the given configuration
func New(handler http.Handler, config *Config) *http.Server {
	if config == nil {
		config = DefaultConfig(":8080")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := &http.Server{
		Addr:           config.Addr,
		Handler:        handler,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	logger.Info("http server configured",
		"addr", config.Addr,
		"read_timeout", config.ReadTimeout.String(),
		"write_timeout", config.WriteTimeout.String(),
		"idle_timeout", config.IdleTimeout.String(),
	)

	return server
}

// Start binds the listener, calls onReady with the bound address and serves
// handler until ctx is cancelled, a configured signal arrives or the server
// fails. It then shuts the server down and closes resources in reverse
// registration order. A bind failure is returned before onReady runs.
func Start(ctx context.Context, handler http.Handler, config *Config, onReady func(addr string), resources ...Resource) error {
	if config == nil {
		config = DefaultConfig(":8080")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := New(handler, config)

	ln, err := net.Listen("tcp", config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", config.Addr, err)
	}

	sm := NewShutdownManager(&ShutdownConfig{
		Logger:  logger,
		Timeout: config.ShutdownTimeout,
		Signals: config.Signals,
	})
	for _, r := range resources {
		sm.Register(r)
	}
	// LIFO: the server stops before the resources it uses
	sm.Register(NewHTTPServerResource("http-server", server))

	tls := config.TLSCertFile != "" && config.TLSKeyFile != ""
	serveErr := make(chan error, 1)
	go func() {
		var err error
		if tls {
			err = server.ServeTLS(ln, config.TLSCertFile, config.TLSKeyFile)
		} else {
			err = server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()

	addr := ln.Addr().String()
	logger.Info("server listening", "addr", addr, "tls", tls)
	if onReady != nil {
		onReady(addr)
	}

	return sm.Wait(ctx, serveErr)
}
