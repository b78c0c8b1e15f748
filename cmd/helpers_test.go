package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/airtable-api/internal/catalog"
	"github.com/sells-group/airtable-api/internal/config"
	"github.com/sells-group/airtable-api/pkg/geocode"
)

const testCatalog = `
geo_area_contacts:
  - id: recAustin
    name: Austin
    type: City
    geocode:
      formatted_address: Austin, TX, USA
      geometry:
        location: {lat: 30.2672, lng: -97.7431}
      address_components:
        - {long_name: Texas, short_name: TX, types: [administrative_area_level_1]}
        - {long_name: United States, short_name: US, types: [country]}
  - id: recTexas
    name: Texas
    type: State
  - id: recUS
    name: United States
    type: Default (US)
geographic_areas:
  - id: recNYC
    name: New York City
    type: Polygon
    polygon_coordinates: POLYGON((-74.0 40.7, -73.9 40.7, -73.9 40.8, -74.0 40.8))
  - id: recBroken
    name: Broken
    type: Polygon
    polygon_coordinates: "-74.0 40.7, -73.9"
  - id: recIntl
    name: International
    type: Default (International)
auto_response_email_templates:
  - id: recTplNYC
    geographic_areas: [recNYC]
    contact_type: Parent
  - id: recTplIntl
    geographic_areas: [recIntl]
`

// fakeGeocoder serves fixed places and counts lookups.
type fakeGeocoder struct {
	mu     sync.Mutex
	places map[string]*geocode.Place
	calls  map[string]int
}

func newFakeGeocoder() *fakeGeocoder {
	return &fakeGeocoder{
		places: map[string]*geocode.Place{
			"Times Square":     testPlace("Manhattan, NY 10036, USA", 40.758, -73.9855, "NY", "US"),
			"301 Congress Ave": testPlace("301 Congress Ave, Austin, TX 78701, USA", 30.2660, -97.7430, "TX", "US"),
			"Texas":            testPlace("Texas, USA", 31.0, -100.0, "TX", "US"),
			"Berlin, Germany":  testPlace("Berlin, Germany", 52.52, 13.405, "", "DE"),
			"El Paso, TX":      testPlace("El Paso, TX, USA", 31.7619, -106.485, "TX", "US"),
		},
		calls: map[string]int{},
	}
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (*geocode.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[address]++
	return f.places[address], nil
}

func (f *fakeGeocoder) count(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[address]
}

func testPlace(formatted string, lat, lng float64, state, country string) *geocode.Place {
	p := &geocode.Place{
		FormattedAddress: formatted,
		Geometry:         &geocode.Geometry{Location: geocode.LatLng{Lat: lat, Lng: lng}},
	}
	if state != "" {
		p.AddressComponents = append(p.AddressComponents, geocode.AddressComponent{
			LongName: state, ShortName: state, Types: []string{geocode.ComponentState},
		})
	}
	p.AddressComponents = append(p.AddressComponents, geocode.AddressComponent{
		LongName: country, ShortName: country, Types: []string{geocode.ComponentCountry},
	})
	return p
}

func testSource(t *testing.T) *catalog.FileSource {
	t.Helper()
	src, err := catalog.ParseFile(strings.NewReader(testCatalog))
	require.NoError(t, err)
	return src
}

// testConfig returns a config using a file catalog written to a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))

	return &config.Config{
		Google:  config.GoogleConfig{APIKey: "test-key", RateLimit: 10, TimeoutSecs: 5},
		Catalog: config.CatalogConfig{Source: "file", File: path, WarmConcurrency: 2},
		Cache:   config.CacheConfig{GeocodeEntries: 16, GeocodeTTLDays: 31},
		Store:   config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(dir, "geocode.db")},
		Retry:   config.RetryConfig{MaxAttempts: 1, BreakerThreshold: 5, BreakerCooldownSecs: 1},
		Server:  config.ServerConfig{Port: 8080, RequestTimeoutSecs: 5, CORSOrigins: []string{"http://localhost:3000"}},
	}
}
