package idmap

import (
	"context"
	"sync"
	"time"

	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/metrics"
)

// Cache stores oracle answers keyed by namespace and term. A cached empty
// slice is a remembered negative answer, distinct from a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Set(ctx context.Context, key string, ids []string) error
	Close() error
}

type memoryEntry struct {
	ids     []string
	expires time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache. A ttl of zero keeps entries forever.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return append([]string{}, e.ids...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, ids []string) error {
	e := memoryEntry{ids: append([]string{}, ids...)}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Close() error { return nil }

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CachedOracle answers from Cache when it can and falls back to Oracle,
// remembering the result. Cache failures are logged and bypassed.
type CachedOracle struct {
	Oracle    Oracle
	Cache     Cache
	Namespace string
	Logger    logging.Logger
	Metrics   *metrics.Registry
}

func (c *CachedOracle) key(term string) string {
	if c.Namespace == "" {
		return term
	}
	return c.Namespace + "|" + term
}

func (c *CachedOracle) logger() logging.Logger {
	if c.Logger == nil {
		return logging.NewNopLogger()
	}
	return c.Logger
}

func (c *CachedOracle) Lookup(ctx context.Context, term string) ([]string, error) {
	key := c.key(term)
	ids, ok, err := c.Cache.Get(ctx, key)
	if err != nil {
		c.logger().Warn("cache read failed", logging.String("key", key), logging.Error(err))
	}
	c.Metrics.RecordCacheLookup(ok)
	if ok {
		return ids, nil
	}

	ids, err = c.Oracle.Lookup(ctx, term)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.Set(ctx, key, ids); err != nil {
		c.logger().Warn("cache write failed", logging.String("key", key), logging.Error(err))
	}
	return ids, nil
}
