package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/airtable-api/internal/catalog"
	"github.com/sells-group/airtable-api/internal/config"
	"github.com/sells-group/airtable-api/internal/geoarea"
	"github.com/sells-group/airtable-api/internal/metrics"
	"github.com/sells-group/airtable-api/internal/resilience"
	"github.com/sells-group/airtable-api/internal/store"
	"github.com/sells-group/airtable-api/pkg/airtable"
	"github.com/sells-group/airtable-api/pkg/geocode"
)

// appEnv holds the catalog, geocoder and stores a command runs against.
type appEnv struct {
	Catalog  catalog.Source
	Cached   *catalog.CachedSource // nil for a file catalog
	Geocoder *geocode.CachedClient // nil without a Google API key
	Store    store.Store           // nil when the persistent cache is off
	Metrics  *metrics.Metrics
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// geocoder returns the geocoder as an interface, nil when geocoding is off.
func (e *appEnv) geocoder() geoarea.Geocoder {
	if e.Geocoder == nil {
		return nil
	}
	return e.Geocoder
}

// initEnv validates cfg for mode and builds the environment. Callers should
// defer env.Close().
func initEnv(ctx context.Context, cfg *config.Config, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &appEnv{Metrics: metrics.NewDefault()}

	src, cached, err := initCatalog(cfg, env.Metrics)
	if err != nil {
		return nil, err
	}
	env.Catalog, env.Cached = src, cached

	st, err := store.Open(ctx, cfg.Store, cfg.Cache.GeocodeTTL())
	if err != nil {
		return nil, eris.Wrap(err, "open geocode store")
	}
	env.Store = st

	if cfg.Google.APIKey != "" {
		env.Geocoder = initGeocoder(cfg, env.Metrics, st)
	} else {
		zap.L().Debug("AIRTABLE_API_GOOGLE_API_KEY not set, geocoding disabled")
	}
	return env, nil
}

func retryPolicy(rc config.RetryConfig) resilience.Policy {
	p := resilience.DefaultPolicy()
	p.MaxAttempts = rc.MaxAttempts
	p.InitialBackoff = time.Duration(rc.InitialBackoffMs) * time.Millisecond
	p.MaxBackoff = time.Duration(rc.MaxBackoffMs) * time.Millisecond
	p.Multiplier = rc.Multiplier
	return p
}

func newGuard(name string, rc config.RetryConfig) *resilience.Guard {
	return resilience.NewGuard(name, retryPolicy(rc), rc.BreakerThreshold,
		time.Duration(rc.BreakerCooldownSecs)*time.Second)
}

// initCatalog returns the configured catalog source. Airtable sources are
// wrapped in a CachedSource, which is also returned.
func initCatalog(cfg *config.Config, m *metrics.Metrics) (catalog.Source, *catalog.CachedSource, error) {
	if cfg.Catalog.Source == "file" {
		src, err := catalog.NewFileSource(cfg.Catalog.File)
		if err != nil {
			return nil, nil, err
		}
		zap.L().Info("catalog loaded from file", zap.String("file", cfg.Catalog.File))
		return src, nil, nil
	}

	client := airtable.NewClient(cfg.Airtable.Token,
		airtable.WithBaseURL(cfg.Airtable.BaseURL),
		airtable.WithRateLimit(cfg.Airtable.RateLimit),
		airtable.WithGuard(newGuard("airtable", cfg.Retry)),
		airtable.WithHTTPClient(&http.Client{
			Timeout:   30 * time.Second,
			Transport: m.InstrumentTransport("airtable", nil),
		}),
	)
	src := catalog.NewAirtableSource(client, catalog.Tables{
		GeoBaseID:         cfg.Airtable.GeoBaseID,
		SchoolsBaseID:     cfg.Airtable.SchoolsBaseID,
		Contacts:          cfg.Airtable.ContactsTable,
		TargetCommunities: cfg.Airtable.TargetCommunitiesTable,
		GeographicAreas:   cfg.Airtable.GeographicAreasTable,
		Templates:         cfg.Airtable.TemplatesTable,
		Partners:          cfg.Airtable.PartnersTable,
	})
	cached := catalog.NewCachedSource(src, catalog.CacheOptions{
		ListEntries:   cfg.Cache.ListEntries,
		ListTTL:       cfg.Cache.ListTTL(),
		RecordEntries: cfg.Cache.RecordEntries,
		RecordTTL:     cfg.Cache.RecordTTL(),
	})
	return cached, cached, nil
}

// initGeocoder builds the Google client behind the memory cache and, when
// st is non-nil, the persistent store.
func initGeocoder(cfg *config.Config, m *metrics.Metrics, st store.Store) *geocode.CachedClient {
	opts := []geocode.Option{
		geocode.WithRateLimit(cfg.Google.RateLimit),
		geocode.WithGuard(newGuard("google", cfg.Retry)),
		geocode.WithHTTPClient(&http.Client{
			Timeout:   time.Duration(cfg.Google.TimeoutSecs) * time.Second,
			Transport: m.InstrumentTransport("google", nil),
		}),
	}
	if cfg.Google.BaseURL != "" {
		opts = append(opts, geocode.WithBaseURL(cfg.Google.BaseURL))
	}
	if cfg.Google.Region != "" {
		opts = append(opts, geocode.WithRegion(cfg.Google.Region))
	}

	cachedOpts := []geocode.CachedOption{
		geocode.WithMemoryCache(cfg.Cache.GeocodeEntries, cfg.Cache.GeocodeTTL()),
		geocode.WithObserver(m),
	}
	if st != nil {
		cachedOpts = append(cachedOpts, geocode.WithStore(st))
	}
	return geocode.NewCachedClient(geocode.NewClient(cfg.Google.APIKey, opts...), cachedOpts...)
}
