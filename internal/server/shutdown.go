package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"
)

// ShutdownConfig holds configuration for graceful shutdown
type ShutdownConfig struct {
	// Logger for structured logging
	Logger *slog.Logger

	// Timeout for graceful shutdown
	Timeout time.Duration

	// Signals to listen for. Empty disables signal handling.
	Signals []os.Signal
}

// Resource represents a resource that needs cleanup during shutdown
type Resource interface {
	Name() string
	Close(ctx context.Context) error
}

// ShutdownManager manages graceful shutdown of the application
type ShutdownManager struct {
	config    *ShutdownConfig
	logger    *slog.Logger
	resources []Resource
	mu        sync.Mutex
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(config *ShutdownConfig) *ShutdownManager {
	if config == nil {
		config = &ShutdownConfig{}
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ShutdownManager{
		config: config,
		logger: logger,
	}
}

// Register adds a resource to be cleaned up during shutdown
func (sm *ShutdownManager) Register(resource Resource) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.resources = append(sm.resources, resource)
	sm.logger.Debug("resource registered for shutdown", "resource", resource.Name())
}

// Wait blocks until ctx is done, a configured signal arrives or failed
// delivers an error, then shuts down. A non-nil error from failed is
// returned together with any shutdown error.
func (sm *ShutdownManager) Wait(ctx context.Context, failed <-chan error) error {
	var sigChan chan os.Signal
	if len(sm.config.Signals) > 0 {
		sigChan = make(chan os.Signal, 1)
		signal.Notify(sigChan, sm.config.Signals...)
		defer signal.Stop(sigChan)
	}

	var cause error
	select {
	case <-ctx.Done():
		sm.logger.Info("shutdown requested", "reason", context.Cause(ctx))
	case sig := <-sigChan:
		sm.logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-failed:
		if err != nil {
			sm.logger.Error("server failed", "error", err)
			cause = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sm.config.Timeout)
	defer cancel()

	return errors.Join(cause, sm.Shutdown(shutdownCtx))
}

// Shutdown closes all registered resources in reverse registration order.
// Every resource is attempted; their errors are joined.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	resources := make([]Resource, len(sm.resources))
	copy(resources, sm.resources)
	sm.mu.Unlock()

	sm.logger.Info("initiating graceful shutdown",
		"timeout", sm.config.Timeout.String(),
		"resources", len(resources),
	)

	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		r := resources[i]
		start := time.Now()

		if err := r.Close(ctx); err != nil {
			sm.logger.Error("failed to close resource",
				"resource", r.Name(),
				"error", err,
				"duration", time.Since(start).String(),
			)
			errs = append(errs, fmt.Errorf("close %s: %w", r.Name(), err))
			continue
		}
		sm.logger.Info("resource closed successfully",
			"resource", r.Name(),
			"duration", time.Since(start).String(),
		)
	}

	if len(errs) == 0 {
		sm.logger.Info("shutdown complete")
	}
	return errors.Join(errs...)
}

// HTTPServerResource wraps an HTTP server for graceful shutdown
type HTTPServerResource struct {
	server *http.Server
	name   string
}

// NewHTTPServerResource creates a new HTTP server resource
func NewHTTPServerResource(name string, server *http.Server) *HTTPServerResource {
	return &HTTPServerResource{
		server: server,
		name:   name,
	}
}

func (h *HTTPServerResource) Name() string {
	return h.name
}

func (h *HTTPServerResource) Close(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// CloserResource adapts an io.Closer such as a cache
type CloserResource struct {
	closer io.Closer
	name   string
}

// NewCloserResource creates a new closer resource
func NewCloserResource(name string, closer io.Closer) *CloserResource {
	return &CloserResource{
		closer: closer,
		name:   name,
	}
}

func (c *CloserResource) Name() string {
	return c.name
}

// Close ignores ctx; io.Closer cannot be interrupted
func (c *CloserResource) Close(_ context.Context) error {
	return c.closer.Close()
}

// CustomResource wraps a custom cleanup function
type CustomResource struct {
	name      string
	closeFunc func(ctx context.Context) error
}

// NewCustomResource creates a new custom resource
func NewCustomResource(name string, closeFunc func(ctx context.Context) error) *CustomResource {
	return &CustomResource{
		name:      name,
		closeFunc: closeFunc,
	}
}

func (c *CustomResource) Name() string {
	return c.name
}

func (c *CustomResource) Close(ctx context.Context) error {
	return c.closeFunc(ctx)
}
