package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often expired entries are swept
const DefaultCleanupInterval = time.Minute

// MemoryCache implements an in-memory cache with TTL support
type MemoryCache struct {
	config    *Config
	items     map[string]memoryCacheItem
	mu        sync.RWMutex
	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type memoryCacheItem struct {
	value      []byte
	expiration time.Time // zero means no expiry
}

func (it memoryCacheItem) expired(now time.Time) bool {
	return !it.expiration.IsZero() && now.After(it.expiration)
}

// NewMemoryCache creates a new in-memory cache and starts its janitor.
// Close stops the janitor.
func NewMemoryCache(config *Config) *MemoryCache {
	return newMemoryCache(config, DefaultCleanupInterval)
}

func newMemoryCache(config *Config, interval time.Duration) *MemoryCache {
	if config == nil {
		config = DefaultConfig()
	}

	mc := &MemoryCache{
		config: config,
		items:  make(map[string]memoryCacheItem),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go mc.cleanupExpired(interval)
	return mc
}

// Get retrieves a value from the cache
func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if !mc.config.Enabled {
		return nil, &CacheError{Op: "get", Key: key, Err: ErrDisabled}
	}

	k := mc.config.prefixKey(key)
	mc.mu.RLock()
	item, ok := mc.items[k]
	mc.mu.RUnlock()

	if !ok || item.expired(time.Now()) {
		return nil, &CacheError{Op: "get", Key: key, Err: ErrNotFound}
	}
	return item.value, nil
}

// Set stores a copy of value in the cache
func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !mc.config.Enabled {
		return &CacheError{Op: "set", Key: key, Err: ErrDisabled}
	}

	item := memoryCacheItem{value: append([]byte(nil), value...)}
	if d := mc.config.ttlFor(ttl); d > 0 {
		item.expiration = time.Now().Add(d)
	}

	mc.mu.Lock()
	mc.items[mc.config.prefixKey(key)] = item
	mc.mu.Unlock()
	return nil
}

// Delete removes a value from the cache
func (mc *MemoryCache) Delete(_ context.Context, key string) error {
	if !mc.config.Enabled {
		return &CacheError{Op: "delete", Key: key, Err: ErrDisabled}
	}

	mc.mu.Lock()
	delete(mc.items, mc.config.prefixKey(key))
	mc.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.items)
}

// Ping checks if the cache is accessible
func (mc *MemoryCache) Ping(context.Context) error {
	if !mc.config.Enabled {
		return &CacheError{Op: "ping", Err: ErrDisabled}
	}
	return nil
}

// Close stops the janitor and waits for it to exit. It is safe to call
// more than once.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() { close(mc.stopCh) })
	<-mc.done
	return nil
}

// cleanupExpired periodically removes expired items
func (mc *MemoryCache) cleanupExpired(interval time.Duration) {
	defer close(mc.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.removeExpiredItems()
		case <-mc.stopCh:
			return
		}
	}
}

func (mc *MemoryCache) removeExpiredItems() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	for key, item := range mc.items {
		if item.expired(now) {
			delete(mc.items, key)
		}
	}
}
