package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/airtable-api/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	cache_key TEXT PRIMARY KEY,
	address   TEXT NOT NULL,
	place     TEXT,
	cached_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON geocode_cache(cached_at);
`

// Migrate creates the cache table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the entry for key, or (nil, nil) when absent.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*geocode.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT address, place, cached_at FROM geocode_cache WHERE cache_key = ?`,
		key,
	)

	var e geocode.Entry
	var place sql.NullString
	err := row.Scan(&e.Address, &place, &e.CachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get geocode")
	}
	if place.Valid {
		e.Place, err = decodePlace([]byte(place.String))
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: get geocode")
		}
	}
	return &e, nil
}

// Put inserts or replaces the entry for key.
func (s *SQLiteStore) Put(ctx context.Context, key string, entry geocode.Entry) error {
	data, err := encodePlace(entry.Place)
	if err != nil {
		return eris.Wrap(err, "sqlite: put geocode")
	}
	var place sql.NullString
	if data != nil {
		place = sql.NullString{String: string(data), Valid: true}
	}
	cachedAt := entry.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (cache_key, address, place, cached_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET address = excluded.address, place = excluded.place, cached_at = excluded.cached_at`,
		key, entry.Address, place, cachedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: put geocode")
}

// Prune deletes entries cached before cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM geocode_cache WHERE cached_at < ?`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune geocode cache")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
