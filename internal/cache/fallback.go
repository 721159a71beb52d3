package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// FallbackCache uses Redis when it is reachable and always mirrors writes
// into an in-memory cache, which serves reads whenever Redis fails.
type FallbackCache struct {
	primary  Cache // nil when Redis was unreachable at startup
	fallback Cache
	logger   *slog.Logger
}

// FallbackConfig holds fallback cache configuration
type FallbackConfig struct {
	// Redis configuration; nil disables the primary
	Redis *RedisConfig

	// Memory cache configuration
	Memory *Config

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultFallbackConfig returns a default fallback configuration
func DefaultFallbackConfig() *FallbackConfig {
	return &FallbackConfig{
		Redis:  DefaultRedisConfig(),
		Memory: DefaultConfig(),
	}
}

// NewFallbackCache creates a fallback cache. An unreachable Redis is logged
// and the cache runs on memory only.
func NewFallbackCache(ctx context.Context, config *FallbackConfig) *FallbackCache {
	if config == nil {
		config = DefaultFallbackConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fc := &FallbackCache{
		fallback: NewMemoryCache(config.Memory),
		logger:   logger,
	}

	if config.Redis != nil {
		if config.Redis.Logger == nil {
			config.Redis.Logger = logger
		}
		redisCache, err := NewRedisCache(ctx, config.Redis)
		if err != nil {
			logger.Warn("redis cache unavailable, using memory cache only", "error", err)
		} else {
			fc.primary = redisCache
			logger.Info("fallback cache initialized with redis primary")
		}
	}

	return fc
}

// UsingPrimary reports whether Redis is in use
func (fc *FallbackCache) UsingPrimary() bool {
	return fc.primary != nil
}

// Get retrieves a value from cache (primary first, then fallback)
func (fc *FallbackCache) Get(ctx context.Context, key string) ([]byte, error) {
	if fc.primary != nil {
		value, err := fc.primary.Get(ctx, key)
		if err == nil || errors.Is(err, ErrNotFound) {
			return value, err
		}
		fc.logger.Warn("primary cache get failed, trying fallback", "error", err, "key", key)
	}
	return fc.fallback.Get(ctx, key)
}

// Set stores a value in both caches
func (fc *FallbackCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var primaryErr error
	if fc.primary != nil {
		if primaryErr = fc.primary.Set(ctx, key, value, ttl); primaryErr != nil {
			fc.logger.Warn("primary cache set failed", "error", primaryErr, "key", key)
		}
	}

	if err := fc.fallback.Set(ctx, key, value, ttl); err != nil {
		fc.logger.Error("fallback cache set failed", "error", err, "key", key)
		return err
	}
	return primaryErr
}

// Delete removes a value from both caches
func (fc *FallbackCache) Delete(ctx context.Context, key string) error {
	if fc.primary != nil {
		if err := fc.primary.Delete(ctx, key); err != nil {
			fc.logger.Warn("primary cache delete failed", "error", err, "key", key)
		}
	}
	return fc.fallback.Delete(ctx, key)
}

// Ping checks the primary cache when present, else the fallback
func (fc *FallbackCache) Ping(ctx context.Context) error {
	if fc.primary != nil {
		return fc.primary.Ping(ctx)
	}
	return fc.fallback.Ping(ctx)
}

// Close closes both caches
func (fc *FallbackCache) Close() error {
	var errs []error
	if fc.primary != nil {
		errs = append(errs, fc.primary.Close())
	}
	errs = append(errs, fc.fallback.Close())
	return errors.Join(errs...)
}
