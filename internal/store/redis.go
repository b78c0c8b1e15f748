package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/airtable-api/pkg/geocode"
)

// redisCmdable is the subset of *redis.Client used by RedisStore.
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisStore implements Store on Redis. Entries expire through key TTLs,
// so Prune is a no-op.
type RedisStore struct {
	client redisCmdable
	prefix string
	ttl    time.Duration
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int, prefix string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "redis: ping %s", addr)
	}
	return newRedisStore(client, prefix, ttl), nil
}

func newRedisStore(client redisCmdable, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Migrate is a no-op.
func (s *RedisStore) Migrate(context.Context) error { return nil }

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get returns the entry for key, or (nil, nil) when absent.
func (s *RedisStore) Get(ctx context.Context, key string) (*geocode.Entry, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "redis: get geocode")
	}
	var e geocode.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, eris.Wrap(err, "redis: unmarshal geocode")
	}
	return &e, nil
}

// Put stores entry under key with the store TTL.
func (s *RedisStore) Put(ctx context.Context, key string, entry geocode.Entry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "redis: marshal geocode")
	}
	return eris.Wrap(s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(), "redis: put geocode")
}

// Prune is a no-op; Redis expires keys itself.
func (s *RedisStore) Prune(context.Context, time.Time) (int, error) {
	return 0, nil
}
