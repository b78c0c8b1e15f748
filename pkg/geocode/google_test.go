package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/airtable-api/internal/resilience"
)

const austinResponse = `{
	"status": "OK",
	"results": [{
		"address_components": [
			{"long_name": "Austin", "short_name": "Austin", "types": ["locality", "political"]},
			{"long_name": "Texas", "short_name": "TX", "types": ["administrative_area_level_1", "political"]},
			{"long_name": "United States", "short_name": "US", "types": ["country", "political"]}
		],
		"formatted_address": "Austin, TX, USA",
		"geometry": {
			"location": {"lat": 30.2672, "lng": -97.7431},
			"location_type": "APPROXIMATE",
			"viewport": {
				"northeast": {"lat": 30.5168, "lng": -97.5684},
				"southwest": {"lat": 30.0986, "lng": -97.9384}
			}
		},
		"place_id": "ChIJLwPMoJm1RIYRetVp1EtGm10",
		"types": ["locality", "political"]
	}]
}`

func newTestGoogleClient(t *testing.T, handler http.HandlerFunc, opts ...Option) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := &googleClient{
		httpClient: srv.Client(),
		apiKey:     "test-key",
		baseURL:    srv.URL,
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func TestGoogleGeocode_ParsesPlace(t *testing.T) {
	var gotAddress, gotKey string
	c := newTestGoogleClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, austinResponse)
	})

	place, err := c.Geocode(context.Background(), "Austin, TX")
	require.NoError(t, err)
	require.NotNil(t, place)

	assert.Equal(t, "Austin, TX", gotAddress)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "Austin, TX, USA", place.FormattedAddress)
	assert.InDelta(t, 30.2672, place.Location().Lat, 0.0001)
	assert.InDelta(t, -97.7431, place.Location().Lng, 0.0001)
	assert.InDelta(t, 30.5168, place.Geometry.Viewport.Northeast.Lat, 0.0001)
	assert.Equal(t, "APPROXIMATE", place.Geometry.LocationType)
	require.NotNil(t, place.State())
	assert.Equal(t, "TX", place.State().ShortName)
	require.NotNil(t, place.Locality())
	assert.Equal(t, "Austin", place.Locality().LongName)
	assert.Nil(t, place.ColloquialArea())
	assert.True(t, place.InUnitedStates())
}

func TestGoogleGeocode_ZeroResults(t *testing.T) {
	c := newTestGoogleClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	})

	place, err := c.Geocode(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.Nil(t, place)
}

func TestGoogleGeocode_RequestDenied(t *testing.T) {
	c := newTestGoogleClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid."}`)
	})

	_, err := c.Geocode(context.Background(), "Austin, TX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
	assert.False(t, resilience.IsTransient(err))
}

func TestGoogleGeocode_OverQueryLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	policy := resilience.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	c := newTestGoogleClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = io.WriteString(w, `{"status": "OVER_QUERY_LIMIT", "results": []}`)
			return
		}
		_, _ = io.WriteString(w, austinResponse)
	}, WithGuard(resilience.NewGuard("google", policy, 5, time.Minute)))

	place, err := c.Geocode(context.Background(), "Austin, TX")
	require.NoError(t, err)
	require.NotNil(t, place)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGoogleGeocode_ServerError(t *testing.T) {
	c := newTestGoogleClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Geocode(context.Background(), "Austin, TX")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, resilience.StatusCode(err))
}

func TestGoogleGeocode_MissingKey(t *testing.T) {
	c := NewClient("")
	_, err := c.Geocode(context.Background(), "Austin, TX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key not configured")
}

func TestGoogleGeocode_Region(t *testing.T) {
	var region string
	c := newTestGoogleClient(t, func(w http.ResponseWriter, r *http.Request) {
		region = r.URL.Query().Get("region")
		_, _ = io.WriteString(w, austinResponse)
	}, WithRegion("us"))

	_, err := c.Geocode(context.Background(), "Austin")
	require.NoError(t, err)
	assert.Equal(t, "us", region)
}

func TestRequire(t *testing.T) {
	c := newTestGoogleClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	})

	_, err := Require(context.Background(), c, "nowhere")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvableAddress)
}
