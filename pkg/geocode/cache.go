package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/airtable-api/internal/cache"
)

// Default cache bounds: street addresses rarely move.
const (
	DefaultCacheTTL     = 31 * 24 * time.Hour
	DefaultCacheEntries = 256
)

// Entry is a cached geocoding outcome. A nil Place records that the address
// produced no result.
type Entry struct {
	Address  string    `json:"address"`
	Place    *Place    `json:"place"`
	CachedAt time.Time `json:"cached_at"`
}

// Store persists geocoding outcomes keyed by CacheKey. Get returns (nil, nil)
// on a miss. Puts for the same key are idempotent.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, entry Entry) error
}

// Observer is notified of cache lookups, per layer ("memory" or "store").
type Observer interface {
	CacheLookup(layer string, hit bool)
}

// CachedOption configures a CachedClient.
type CachedOption func(*CachedClient)

// WithStore adds a persistent second-level store.
func WithStore(s Store) CachedOption {
	return func(c *CachedClient) {
		c.store = s
	}
}

// WithMemoryCache sets the in-memory cache bounds.
func WithMemoryCache(maxEntries int, ttl time.Duration) CachedOption {
	return func(c *CachedClient) {
		c.memory = cache.NewLRU[Entry](maxEntries, ttl)
		c.ttl = ttl
	}
}

// WithObserver reports cache hits and misses to o.
func WithObserver(o Observer) CachedOption {
	return func(c *CachedClient) {
		c.observer = o
	}
}

// CachedClient checks an in-memory LRU, then an optional persistent Store,
// before calling the wrapped Client.
type CachedClient struct {
	next     Client
	memory   *cache.LRU[Entry]
	store    Store
	ttl      time.Duration
	observer Observer
	now      func() time.Time
}

// NewCachedClient wraps next with result caching.
func NewCachedClient(next Client, opts ...CachedOption) *CachedClient {
	c := &CachedClient{
		next:   next,
		memory: cache.NewLRU[Entry](DefaultCacheEntries, DefaultCacheTTL),
		ttl:    DefaultCacheTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode returns the cached outcome for address, or geocodes and caches it.
func (c *CachedClient) Geocode(ctx context.Context, address string) (*Place, error) {
	key := CacheKey(address)

	if e, ok := c.memory.Get(key); ok {
		c.observe("memory", true)
		return e.Place, nil
	}
	c.observe("memory", false)

	if c.store != nil {
		e, err := c.store.Get(ctx, key)
		if err != nil {
			zap.L().Warn("geocode cache store read failed", zap.String("key", shortKey(key)), zap.Error(err))
		}
		if e != nil && (c.ttl <= 0 || c.now().Sub(e.CachedAt) <= c.ttl) {
			c.observe("store", true)
			c.memory.Set(key, *e)
			return e.Place, nil
		}
		c.observe("store", false)
	}

	place, err := c.next.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	entry := Entry{Address: address, Place: place, CachedAt: c.now().UTC()}
	c.memory.Set(key, entry)
	if c.store != nil {
		if err := c.store.Put(ctx, key, entry); err != nil {
			zap.L().Warn("geocode cache store write failed", zap.String("key", shortKey(key)), zap.Error(err))
		}
	}
	return place, nil
}

// Stats returns in-memory cache statistics.
func (c *CachedClient) Stats() cache.Stats {
	return c.memory.Stats()
}

func (c *CachedClient) observe(layer string, hit bool) {
	if c.observer != nil {
		c.observer.CacheLookup(layer, hit)
	}
}

// CacheKey returns the SHA-256 hex of the normalized address: NFKC, case
// folded, with runs of whitespace collapsed.
func CacheKey(address string) string {
	normalized := cases.Fold().String(norm.NFKC.String(address))
	normalized = strings.Join(strings.Fields(normalized), " ")
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
