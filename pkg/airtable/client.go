// Package airtable is a minimal client for the Airtable REST API.
package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/airtable-api/internal/resilience"
)

const (
	defaultBaseURL = "https://api.airtable.com/v0"
	service        = "airtable"

	// Airtable allows 5 requests per second per base.
	defaultRatePerBase = 5
	maxPageSize        = 100
)

// ErrNotFound is returned when a base, table, or record does not exist.
var ErrNotFound = eris.New("airtable: not found")

// Record is a single Airtable row. Field values are decoded as generic JSON:
// strings, float64s, bools, []any and map[string]any.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// ListOptions filters and pages a list request.
type ListOptions struct {
	Formula  string
	View     string
	PageSize int
	Offset   string
	Fields   []string
}

// Page is one page of a list response. Offset is empty on the last page.
type Page struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// Client defines the Airtable operations used by the catalog.
type Client interface {
	// List fetches a single page.
	List(ctx context.Context, baseID, table string, opts ListOptions) (*Page, error)
	// All follows offsets until every matching record is fetched.
	All(ctx context.Context, baseID, table string, opts ListOptions) ([]Record, error)
	// Get fetches one record by ID.
	Get(ctx context.Context, baseID, table, recordID string) (*Record, error)
	// First returns the first record matching formula, or ErrNotFound.
	First(ctx context.Context, baseID, table, formula string) (*Record, error)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default API URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the per-base requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.rps = rps
	}
}

// WithGuard wraps every request in the given retry policy and circuit breaker.
func WithGuard(g *resilience.Guard) Option {
	return func(c *httpClient) {
		c.guard = g
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	guard   *resilience.Guard
	rps     float64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates an Airtable client authenticated with a personal access token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:    token,
		baseURL:  defaultBaseURL,
		rps:      defaultRatePerBase,
		limiters: make(map[string]*rate.Limiter),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) List(ctx context.Context, baseID, table string, opts ListOptions) (*Page, error) {
	q := url.Values{}
	if opts.Formula != "" {
		q.Set("filterByFormula", opts.Formula)
	}
	if opts.View != "" {
		q.Set("view", opts.View)
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(min(opts.PageSize, maxPageSize)))
	}
	if opts.Offset != "" {
		q.Set("offset", opts.Offset)
	}
	for _, f := range opts.Fields {
		q.Add("fields[]", f)
	}

	var page Page
	if err := c.get(ctx, baseID, tablePath(baseID, table), q, &page); err != nil {
		return nil, eris.Wrapf(err, "airtable: list %s", table)
	}
	return &page, nil
}

func (c *httpClient) All(ctx context.Context, baseID, table string, opts ListOptions) ([]Record, error) {
	var records []Record
	for {
		page, err := c.List(ctx, baseID, table, opts)
		if err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			break
		}
		opts.Offset = page.Offset
	}
	zap.L().Debug("airtable: listed records",
		zap.String("base_id", baseID),
		zap.String("table", table),
		zap.Int("count", len(records)),
	)
	return records, nil
}

func (c *httpClient) Get(ctx context.Context, baseID, table, recordID string) (*Record, error) {
	var rec Record
	path := tablePath(baseID, table) + "/" + url.PathEscape(recordID)
	if err := c.get(ctx, baseID, path, nil, &rec); err != nil {
		return nil, eris.Wrapf(err, "airtable: get %s/%s", table, recordID)
	}
	return &rec, nil
}

func (c *httpClient) First(ctx context.Context, baseID, table, formula string) (*Record, error) {
	page, err := c.List(ctx, baseID, table, ListOptions{Formula: formula, PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Records) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "airtable: %s where %s", table, formula)
	}
	return &page.Records[0], nil
}

func (c *httpClient) get(ctx context.Context, baseID, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	_, err := resilience.Call(ctx, c.guard, "airtable.get", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.do(ctx, baseID, u, out)
	})
	return err
}

func (c *httpClient) do(ctx context.Context, baseID, u string, out any) error {
	if err := c.limiter(baseID).Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return eris.Wrap(ErrNotFound, errorType(data))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return resilience.NewStatusError(service, resp.StatusCode, string(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

func (c *httpClient) limiter(baseID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[baseID]
	if !ok {
		burst := int(c.rps)
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(c.rps), burst)
		c.limiters[baseID] = l
	}
	return l
}

func tablePath(baseID, table string) string {
	return "/" + url.PathEscape(baseID) + "/" + url.PathEscape(table)
}

// errorType extracts the error type from an Airtable error body, which is
// either {"error": "NOT_FOUND"} or {"error": {"type": "...", "message": "..."}}.
func errorType(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return "NOT_FOUND"
	}
	var s string
	if err := json.Unmarshal(envelope.Error, &s); err == nil {
		return s
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(envelope.Error, &obj); err == nil && obj.Type != "" {
		return obj.Type
	}
	return "NOT_FOUND"
}

// IsNotFound reports whether err is an Airtable not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
