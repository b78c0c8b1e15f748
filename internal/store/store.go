// Package store persists geocoding results across restarts.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/airtable-api/internal/config"
	"github.com/sells-group/airtable-api/pkg/geocode"
)

// Store is a persistent geocode cache.
type Store interface {
	geocode.Store

	// Prune deletes entries cached before cutoff and returns how many were
	// removed.
	Prune(ctx context.Context, cutoff time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates and migrates the store selected by cfg.Driver. It returns
// (nil, nil) for the "none" driver.
func Open(ctx context.Context, cfg config.StoreConfig, ttl time.Duration) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		s, err = NewSQLite(cfg.SQLitePath)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "redis":
		s, err = NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix, ttl)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	zap.L().Info("store: opened geocode cache", zap.String("driver", cfg.Driver))
	return s, nil
}

// encodePlace returns the JSON form of p, or nil for a negative entry.
func encodePlace(p *geocode.Place) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "marshal place")
	}
	return data, nil
}

func decodePlace(data []byte) (*geocode.Place, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var p geocode.Place
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "unmarshal place")
	}
	return &p, nil
}
