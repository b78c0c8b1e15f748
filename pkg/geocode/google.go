package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/airtable-api/internal/resilience"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

const googleService = "google"

// Google Geocoding API statuses.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusUnknownError   = "UNKNOWN_ERROR"
)

type googleGeocodeResponse struct {
	Results      []Place `json:"results"`
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
}

// Geocode geocodes address via the Google Geocoding API and returns the best
// (first) result.
func (g *googleClient) Geocode(ctx context.Context, address string) (*Place, error) {
	if g.apiKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}
	return resilience.Call(ctx, g.guard, "geocode.google", func(ctx context.Context) (*Place, error) {
		return g.geocodeOnce(ctx, address)
	})
}

func (g *googleClient) geocodeOnce(ctx context.Context, address string) (*Place, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	params := url.Values{
		"address": {address},
		"key":     {g.apiKey},
	}
	if g.region != "" {
		params.Set("region", g.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrap(resilience.NewStatusError(googleService, resp.StatusCode, string(body)), "geocode: google")
	}

	var gr googleGeocodeResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch gr.Status {
	case statusOK:
		if len(gr.Results) == 0 {
			return nil, nil
		}
		place := gr.Results[0]
		zap.L().Debug("geocoded address",
			zap.String("formatted_address", place.FormattedAddress),
			zap.Int("candidates", len(gr.Results)),
		)
		return &place, nil
	case statusZeroResults:
		return nil, nil
	case statusOverQueryLimit, statusUnknownError:
		return nil, eris.Wrap(
			resilience.NewTransientError(googleService, eris.Errorf("%s: %s", gr.Status, gr.ErrorMessage)),
			"geocode: google",
		)
	default:
		return nil, eris.Errorf("geocode: google status %s: %s", gr.Status, gr.ErrorMessage)
	}
}
