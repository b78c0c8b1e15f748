package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Airtable AirtableConfig `yaml:"airtable" mapstructure:"airtable"`
	Google   GoogleConfig   `yaml:"google" mapstructure:"google"`
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// AirtableConfig holds Airtable credentials, base IDs and table names.
type AirtableConfig struct {
	Token                  string  `yaml:"token" mapstructure:"token"`
	BaseURL                string  `yaml:"base_url" mapstructure:"base_url"`
	GeoBaseID              string  `yaml:"geo_base_id" mapstructure:"geo_base_id"`
	SchoolsBaseID          string  `yaml:"schools_base_id" mapstructure:"schools_base_id"`
	ContactsTable          string  `yaml:"contacts_table" mapstructure:"contacts_table"`
	TargetCommunitiesTable string  `yaml:"target_communities_table" mapstructure:"target_communities_table"`
	GeographicAreasTable   string  `yaml:"geographic_areas_table" mapstructure:"geographic_areas_table"`
	TemplatesTable         string  `yaml:"templates_table" mapstructure:"templates_table"`
	PartnersTable          string  `yaml:"partners_table" mapstructure:"partners_table"`
	RateLimit              float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// GoogleConfig configures the Google Geocoding API client.
type GoogleConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Region      string  `yaml:"region" mapstructure:"region"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CatalogConfig selects where area and template records come from.
type CatalogConfig struct {
	// Source is "airtable" or "file".
	Source          string `yaml:"source" mapstructure:"source"`
	File            string `yaml:"file" mapstructure:"file"`
	WarmConcurrency int    `yaml:"warm_concurrency" mapstructure:"warm_concurrency"`

	// RefreshIntervalSecs reloads the Airtable catalog in the background;
	// 0 disables it.
	RefreshIntervalSecs int `yaml:"refresh_interval_secs" mapstructure:"refresh_interval_secs"`
}

// CacheConfig bounds the in-memory caches.
type CacheConfig struct {
	ListEntries    int `yaml:"list_entries" mapstructure:"list_entries"`
	ListTTLSecs    int `yaml:"list_ttl_secs" mapstructure:"list_ttl_secs"`
	RecordEntries  int `yaml:"record_entries" mapstructure:"record_entries"`
	RecordTTLSecs  int `yaml:"record_ttl_secs" mapstructure:"record_ttl_secs"`
	GeocodeEntries int `yaml:"geocode_entries" mapstructure:"geocode_entries"`
	GeocodeTTLDays int `yaml:"geocode_ttl_days" mapstructure:"geocode_ttl_days"`
}

// ListTTL returns the list cache TTL.
func (c CacheConfig) ListTTL() time.Duration { return time.Duration(c.ListTTLSecs) * time.Second }

// RecordTTL returns the single-record cache TTL.
func (c CacheConfig) RecordTTL() time.Duration { return time.Duration(c.RecordTTLSecs) * time.Second }

// GeocodeTTL returns the geocode cache TTL.
func (c CacheConfig) GeocodeTTL() time.Duration {
	return time.Duration(c.GeocodeTTLDays) * 24 * time.Hour
}

// StoreConfig configures the persistent geocode cache.
type StoreConfig struct {
	// Driver is "none", "sqlite", "postgres" or "redis".
	Driver        string `yaml:"driver" mapstructure:"driver"`
	SQLitePath    string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
}

// ResolverConfig configures area resolution.
type ResolverConfig struct {
	StrictPolygons bool `yaml:"strict_polygons" mapstructure:"strict_polygons"`
}

// RetryConfig configures retries and circuit breaking for upstream calls.
type RetryConfig struct {
	MaxAttempts         int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs    int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs        int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier          float64 `yaml:"multiplier" mapstructure:"multiplier"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs  int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AIRTABLE_API")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("airtable.token", "")
	v.SetDefault("airtable.base_url", "https://api.airtable.com/v0")
	v.SetDefault("airtable.geo_base_id", "")
	v.SetDefault("airtable.schools_base_id", "")
	v.SetDefault("airtable.contacts_table", "Area Contact")
	v.SetDefault("airtable.target_communities_table", "Area Target Community")
	v.SetDefault("airtable.geographic_areas_table", "Geographic Areas")
	v.SetDefault("airtable.templates_table", "Auto-Response Email Templates")
	v.SetDefault("airtable.partners_table", "Partners")
	v.SetDefault("airtable.rate_limit", 5.0)
	v.SetDefault("google.api_key", "")
	v.SetDefault("google.base_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("google.region", "")
	v.SetDefault("google.rate_limit", 40.0)
	v.SetDefault("google.timeout_secs", 15)
	v.SetDefault("catalog.source", "airtable")
	v.SetDefault("catalog.file", "")
	v.SetDefault("catalog.warm_concurrency", 4)
	v.SetDefault("catalog.refresh_interval_secs", 0)
	v.SetDefault("cache.list_entries", 32)
	v.SetDefault("cache.list_ttl_secs", 600)
	v.SetDefault("cache.record_entries", 1024)
	v.SetDefault("cache.record_ttl_secs", 600)
	v.SetDefault("cache.geocode_entries", 256)
	v.SetDefault("cache.geocode_ttl_days", 31)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.sqlite_path", "geocode_cache.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "geocode:")
	v.SetDefault("resolver.strict_polygons", false)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 250)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.breaker_threshold", 5)
	v.SetDefault("retry.breaker_cooldown_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost", "http://localhost:3000", "http://localhost:8080"})
	v.SetDefault("server.request_timeout_secs", 30)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is "serve", "resolve"
// or "catalog"; all problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "resolve", "catalog":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Catalog.Source {
	case "airtable":
		if c.Airtable.Token == "" {
			errs = append(errs, "airtable.token is required")
		}
		if c.Airtable.GeoBaseID == "" {
			errs = append(errs, "airtable.geo_base_id is required")
		}
	case "file":
		if c.Catalog.File == "" {
			errs = append(errs, "catalog.file is required when catalog.source is file")
		}
	default:
		errs = append(errs, fmt.Sprintf("catalog.source %q must be airtable or file", c.Catalog.Source))
	}

	switch c.Store.Driver {
	case "", "none", "sqlite", "redis":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be none, sqlite, postgres or redis", c.Store.Driver))
	}

	if mode == "serve" || mode == "resolve" {
		if c.Google.APIKey == "" {
			errs = append(errs, "google.api_key is required")
		}
	}
	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
