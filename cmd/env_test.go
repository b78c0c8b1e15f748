package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/airtable-api/internal/config"
	"github.com/sells-group/airtable-api/internal/geoarea"
	"github.com/sells-group/airtable-api/internal/metrics"
)

func TestInitEnv_FileCatalog(t *testing.T) {
	c := testConfig(t)
	env, err := initEnv(context.Background(), c, "serve")
	require.NoError(t, err)
	t.Cleanup(env.Close)

	assert.Nil(t, env.Cached)
	assert.NotNil(t, env.Store)
	assert.NotNil(t, env.Geocoder)
	assert.NotNil(t, env.geocoder())
	assert.NotNil(t, env.Metrics)

	areas, err := env.Catalog.ListAreas(context.Background(), geoarea.KindContacts)
	require.NoError(t, err)
	assert.Len(t, areas, 3)
}

func TestInitEnv_NoGeocoderWithoutKey(t *testing.T) {
	c := testConfig(t)
	c.Google.APIKey = ""
	c.Store.Driver = "none"

	env, err := initEnv(context.Background(), c, "catalog")
	require.NoError(t, err)
	t.Cleanup(env.Close)

	assert.Nil(t, env.Store)
	assert.Nil(t, env.Geocoder)
	assert.Nil(t, env.geocoder())
}

func TestInitEnv_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Google.APIKey = ""

	_, err := initEnv(context.Background(), c, "serve")
	assert.ErrorContains(t, err, "google.api_key is required")
}

func TestInitEnv_MissingCatalogFile(t *testing.T) {
	c := testConfig(t)
	c.Catalog.File = "/nonexistent/catalog.yaml"

	_, err := initEnv(context.Background(), c, "catalog")
	assert.Error(t, err)
}

func TestInitCatalog_Airtable(t *testing.T) {
	c := &config.Config{
		Airtable: config.AirtableConfig{Token: "tok", GeoBaseID: "appGeo", BaseURL: "http://127.0.0.1:1", RateLimit: 5},
		Catalog:  config.CatalogConfig{Source: "airtable"},
		Cache:    config.CacheConfig{ListEntries: 4, ListTTLSecs: 60, RecordEntries: 8, RecordTTLSecs: 60},
		Retry:    config.RetryConfig{MaxAttempts: 1, BreakerThreshold: 1, BreakerCooldownSecs: 1},
	}
	src, cached, err := initCatalog(c, metrics.NewDefault())
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Same(t, cached, src)
}

func TestRetryPolicy(t *testing.T) {
	p := retryPolicy(config.RetryConfig{MaxAttempts: 4, InitialBackoffMs: 100, MaxBackoffMs: 2000, Multiplier: 1.5})
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.InitialBackoff)
	assert.Equal(t, 2*time.Second, p.MaxBackoff)
	assert.InDelta(t, 1.5, p.Multiplier, 0)
}

func TestNewAPIServer(t *testing.T) {
	cfg = testConfig(t)
	env, err := initEnv(context.Background(), cfg, "serve")
	require.NoError(t, err)
	t.Cleanup(env.Close)

	srv := httptest.NewServer(newAPIServer(env).Routes())
	t.Cleanup(srv.Close)

	for _, path := range []string{"/", "/health", "/metrics", "/geo_mapping/contacts", "/auto_response_email_templates"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
