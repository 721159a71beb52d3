package handlers

import (
	"context"
	"errors"
	"runtime"
	"time"

	"microspark/internal/cache"
	"microspark/internal/router"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

const healthCheckTimeout = 2 * time.Second

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     HealthStatus           `json:"status"`
	Timestamp  string                 `json:"timestamp"`
	Uptime     string                 `json:"uptime"`
	Version    string                 `json:"version,omitempty"`
	Goroutines int                    `json:"goroutines"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// Health reports uptime, version and the cache status. A failing cache
// marks the service degraded; the status code stays 200.
// Endpoint: GET /health
func (h *Handler) Health(c *router.Context) (any, error) {
	resp := &HealthResponse{
		Status:     StatusHealthy,
		Timestamp:  time.Now().Format(time.RFC3339),
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Version:    h.Version,
		Goroutines: runtime.NumGoroutine(),
		Checks:     make(map[string]CheckResult),
	}

	if h.Cache != nil {
		ctx, cancel := context.WithTimeout(c.Context(), healthCheckTimeout)
		defer cancel()

		check := checkCache(ctx, h.Cache)
		resp.Checks["cache"] = check
		if check.Status != StatusHealthy {
			resp.Status = StatusDegraded
			h.Logger.Warn("health check degraded", "check", "cache", "error", check.Error)
		}
	}

	return resp, nil
}

func checkCache(ctx context.Context, c cache.Cache) CheckResult {
	start := time.Now()
	err := c.Ping(ctx)
	latency := time.Since(start).String()

	switch {
	case err == nil:
		return CheckResult{Status: StatusHealthy, Latency: latency}
	case errors.Is(err, cache.ErrDisabled):
		return CheckResult{Status: StatusHealthy, Message: "cache disabled"}
	default:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Latency: latency}
	}
}
