package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/airtable-api/pkg/geocode"
)

// Pool is the subset of *pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// postgresQueries holds the statements used by PostgresStore.
var postgresQueries = map[string]string{
	"get_geocode":   `SELECT address, place, cached_at FROM geocode_cache WHERE cache_key = $1`,
	"put_geocode":   `INSERT INTO geocode_cache (cache_key, address, place, cached_at) VALUES ($1, $2, $3, $4) ON CONFLICT (cache_key) DO UPDATE SET address = $2, place = $3, cached_at = $4`,
	"prune_geocode": `DELETE FROM geocode_cache WHERE cached_at < $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	cache_key TEXT PRIMARY KEY,
	address   TEXT NOT NULL,
	place     JSONB,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON geocode_cache(cached_at);
`

// Migrate creates the cache table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Get returns the entry for key, or (nil, nil) when absent.
func (s *PostgresStore) Get(ctx context.Context, key string) (*geocode.Entry, error) {
	var e geocode.Entry
	var place []byte
	err := s.pool.QueryRow(ctx, postgresQueries["get_geocode"], key).Scan(&e.Address, &place, &e.CachedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get geocode")
	}
	e.Place, err = decodePlace(place)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get geocode")
	}
	return &e, nil
}

// Put inserts or replaces the entry for key.
func (s *PostgresStore) Put(ctx context.Context, key string, entry geocode.Entry) error {
	place, err := encodePlace(entry.Place)
	if err != nil {
		return eris.Wrap(err, "postgres: put geocode")
	}
	cachedAt := entry.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}
	_, err = s.pool.Exec(ctx, postgresQueries["put_geocode"], key, entry.Address, place, cachedAt.UTC())
	return eris.Wrap(err, "postgres: put geocode")
}

// Prune deletes entries cached before cutoff.
func (s *PostgresStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, postgresQueries["prune_geocode"], cutoff.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune geocode cache")
	}
	return int(tag.RowsAffected()), nil
}
