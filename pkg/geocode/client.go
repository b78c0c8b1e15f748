// Package geocode resolves free-text addresses to places using the Google
// Geocoding API, with a two-level result cache.
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/airtable-api/internal/resilience"
)

// ErrUnresolvableAddress is returned by callers that require a place when the
// geocoder found none.
var ErrUnresolvableAddress = eris.New("geocode: address could not be geocoded")

// Client geocodes a single free-text address. A nil Place with a nil error
// means the address produced no result.
type Client interface {
	Geocode(ctx context.Context, address string) (*Place, error)
}

// Option configures the Google client.
type Option func(*googleClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *googleClient) {
		g.httpClient = hc
	}
}

// WithBaseURL overrides the geocoding endpoint.
func WithBaseURL(u string) Option {
	return func(g *googleClient) {
		g.baseURL = u
	}
}

// WithRateLimit sets the requests-per-second limit for Google calls.
func WithRateLimit(rps float64) Option {
	return func(g *googleClient) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithGuard wraps every upstream call in the given retry policy and circuit breaker.
func WithGuard(guard *resilience.Guard) Option {
	return func(g *googleClient) {
		g.guard = guard
	}
}

// WithRegion biases results toward a ccTLD region code (e.g. "us").
func WithRegion(region string) Option {
	return func(g *googleClient) {
		g.region = region
	}
}

type googleClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	region     string
	limiter    *rate.Limiter
	guard      *resilience.Guard
}

// NewClient creates a Google geocoding Client.
func NewClient(apiKey string, opts ...Option) Client {
	g := &googleClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		baseURL:    googleGeocodeURL,
		limiter:    rate.NewLimiter(40, 40),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Require geocodes address and converts a missing result into ErrUnresolvableAddress.
func Require(ctx context.Context, c Client, address string) (*Place, error) {
	place, err := c.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	if place == nil || place.Geometry == nil {
		return nil, eris.Wrapf(ErrUnresolvableAddress, "address %q", address)
	}
	return place, nil
}
