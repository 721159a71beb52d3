package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Cache defines the interface for all cache implementations
type Cache interface {
	// Get retrieves a value from the cache. A missing or expired key
	// yields an error matching ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with optional TTL (0 = default TTL)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Ping checks if the cache is accessible
	Ping(ctx context.Context) error

	// Close releases the cache's resources
	Close() error
}

// Config holds common cache configuration
type Config struct {
	// Default TTL for cache entries (negative = no expiration)
	DefaultTTL time.Duration

	// Key prefix for all cache keys
	Prefix string

	// Enable/disable cache (useful for testing)
	Enabled bool
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "microspark:",
		Enabled:    true,
	}
}

func (c *Config) prefixKey(key string) string {
	return c.Prefix + key
}

// ttlFor resolves the TTL to store a value with; zero means no expiry
func (c *Config) ttlFor(ttl time.Duration) time.Duration {
	if ttl == 0 {
		ttl = c.DefaultTTL
	}
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Sentinel errors, matched with errors.Is
var (
	ErrNotFound    = errors.New("key not found")
	ErrUnavailable = errors.New("cache unavailable")
	ErrDisabled    = errors.New("cache disabled")
)

// CacheError represents a cache operation error
type CacheError struct {
	Op  string // Operation that failed
	Key string // Cache key involved
	Err error  // Underlying error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return "cache " + e.Op + " " + e.Key + " failed: " + e.Err.Error()
	}
	return "cache " + e.Op + " failed: " + e.Err.Error()
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// GetJSON loads key and decodes it into a T
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, error) {
	var v T
	data, err := c.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, &CacheError{Op: "decode", Key: key, Err: err}
	}
	return v, nil
}

// SetJSON encodes v and stores it under key
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &CacheError{Op: "encode", Key: key, Err: err}
	}
	return c.Set(ctx, key, data, ttl)
}
