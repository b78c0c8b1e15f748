package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/airtable-api/internal/config"
	"github.com/sells-group/airtable-api/pkg/geocode"
)

func austinPlace() *geocode.Place {
	return &geocode.Place{
		FormattedAddress: "Austin, TX, USA",
		AddressComponents: []geocode.AddressComponent{
			{LongName: "Texas", ShortName: "TX", Types: []string{geocode.ComponentState}},
			{LongName: "United States", ShortName: "US", Types: []string{geocode.ComponentCountry}},
		},
		Geometry: &geocode.Geometry{
			Location: geocode.LatLng{Lat: 30.2672, Lng: -97.7431},
			Viewport: geocode.Bounds{
				Northeast: geocode.LatLng{Lat: 30.5168, Lng: -97.5684},
				Southwest: geocode.LatLng{Lat: 30.0987, Lng: -97.9383},
			},
		},
	}
}

// storeTestSuite runs the behaviour every geocode store must share.
func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("Miss", func(t *testing.T) {
		s := newStore(t)
		e, err := s.Get(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("PutAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Second)

		require.NoError(t, s.Put(ctx, "k1", geocode.Entry{Address: "Austin, TX", Place: austinPlace(), CachedAt: now}))

		e, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "Austin, TX", e.Address)
		require.NotNil(t, e.Place)
		assert.Equal(t, austinPlace(), e.Place)
		assert.WithinDuration(t, now, e.CachedAt, time.Second)
	})

	t.Run("NegativeEntry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "k2", geocode.Entry{Address: "nowhere", CachedAt: time.Now()}))

		e, err := s.Get(ctx, "k2")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Nil(t, e.Place)
	})

	t.Run("PutIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Put(ctx, "k3", geocode.Entry{Address: "Austin, TX", Place: austinPlace(), CachedAt: time.Now()}))
			}()
		}
		wg.Wait()

		e, err := s.Get(ctx, "k3")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "Austin, TX", e.Address)
	})
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, func(t *testing.T) Store { return newTestSQLiteStore(t) })
}

func TestRedisStore(t *testing.T) {
	storeTestSuite(t, func(t *testing.T) Store { return newRedisStore(newFakeRedis(), "geocode:", time.Hour) })
}

func TestSQLiteStore_Prune(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, st.Put(ctx, "old", geocode.Entry{Address: "old", CachedAt: now.Add(-40 * 24 * time.Hour)}))
	require.NoError(t, st.Put(ctx, "new", geocode.Entry{Address: "new", CachedAt: now}))

	n, err := st.Prune(ctx, now.Add(-31*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e, err := st.Get(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, e)
	e, err = st.Get(ctx, "new")
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestSQLiteStore_MigrateTwice(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestRedisStore_KeyPrefixAndTTL(t *testing.T) {
	fake := newFakeRedis()
	s := newRedisStore(fake, "geocode:", 31*24*time.Hour)

	require.NoError(t, s.Put(context.Background(), "abc", geocode.Entry{Address: "Austin"}))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	_, ok := fake.data["geocode:abc"]
	assert.True(t, ok)
	assert.Equal(t, 31*24*time.Hour, fake.ttls["geocode:abc"])
}

func TestRedisStore_CorruptValue(t *testing.T) {
	fake := newFakeRedis()
	fake.data["geocode:bad"] = "{not json"
	s := newRedisStore(fake, "geocode:", time.Hour)

	_, err := s.Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: "none"}, time.Hour)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "geo.db")}, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NoError(t, s.Close())

	_, err = Open(ctx, config.StoreConfig{Driver: "mongo"}, time.Hour)
	assert.ErrorContains(t, err, "unknown driver")
}

// fakeRedis is an in-memory redisCmdable.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error { return nil }
