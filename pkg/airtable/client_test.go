package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/airtable-api/internal/resilience"
)

func newTestServer(t *testing.T, handler http.HandlerFunc, opts ...Option) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithRateLimit(1000)}, opts...)
	return NewClient("pat-test", opts...)
}

func TestList(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/appGeo/Area Contact", r.URL.Path)
		assert.Equal(t, "Bearer pat-test", r.Header.Get("Authorization"))
		assert.Equal(t, "{Area Type}='City'", r.URL.Query().Get("filterByFormula"))
		assert.Equal(t, "100", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "Grid view", r.URL.Query().Get("view"))
		assert.Equal(t, []string{"Area Name", "Area Type"}, r.URL.Query()["fields[]"])

		_ = json.NewEncoder(w).Encode(Page{
			Records: []Record{{ID: "rec1", Fields: map[string]any{"Area Name": "Austin", "City Radius": 20}}},
			Offset:  "itr1/rec1",
		})
	})

	page, err := c.List(context.Background(), "appGeo", "Area Contact", ListOptions{
		Formula:  Equal("Area Type", "City"),
		View:     "Grid view",
		PageSize: 500,
		Fields:   []string{"Area Name", "Area Type"},
	})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "rec1", page.Records[0].ID)
	assert.Equal(t, "Austin", page.Records[0].Fields["Area Name"])
	assert.InDelta(t, 20.0, page.Records[0].Fields["City Radius"], 0.0001)
	assert.Equal(t, "itr1/rec1", page.Offset)
}

func TestAll_FollowsOffsets(t *testing.T) {
	var calls atomic.Int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("offset") {
		case "":
			_ = json.NewEncoder(w).Encode(Page{Records: []Record{{ID: "rec1"}, {ID: "rec2"}}, Offset: "page2"})
		case "page2":
			_ = json.NewEncoder(w).Encode(Page{Records: []Record{{ID: "rec3"}}, Offset: "page3"})
		case "page3":
			_ = json.NewEncoder(w).Encode(Page{Records: []Record{{ID: "rec4"}}})
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})

	records, err := c.All(context.Background(), "appGeo", "Geographic Areas", ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "rec4", records[3].ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appGeo/Area Contact/recAustin", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Record{ID: "recAustin", Fields: map[string]any{"Area Name": "Austin"}})
	})

	rec, err := c.Get(context.Background(), "appGeo", "Area Contact", "recAustin")
	require.NoError(t, err)
	assert.Equal(t, "recAustin", rec.ID)
}

func TestGet_NotFound(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"string error", `{"error":"NOT_FOUND"}`},
		{"object error", `{"error":{"type":"MODEL_ID_NOT_FOUND","message":"Could not find record"}}`},
		{"empty body", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Get(context.Background(), "appGeo", "Area Contact", "recMissing")
			require.Error(t, err)
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestGet_ServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	policy := resilience.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(Record{ID: "recAustin"})
	}, WithGuard(resilience.NewGuard("airtable", policy, 10, time.Minute)))

	rec, err := c.Get(context.Background(), "appGeo", "Area Contact", "recAustin")
	require.NoError(t, err)
	assert.Equal(t, "recAustin", rec.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_UnprocessableIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"type":"INVALID_FILTER_BY_FORMULA"}}`))
	}, WithGuard(resilience.NewGuard("airtable", resilience.DefaultPolicy(), 10, time.Minute)))

	_, err := c.List(context.Background(), "appGeo", "Area Contact", ListOptions{Formula: "{bad"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resilience.StatusCode(err))
	assert.Contains(t, err.Error(), "INVALID_FILTER_BY_FORMULA")
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, IsNotFound(err))
}

func TestFirst(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		if r.URL.Query().Get("filterByFormula") == Equal("Record ID", "recKnown") {
			_ = json.NewEncoder(w).Encode(Page{Records: []Record{{ID: "recPartner"}}})
			return
		}
		_ = json.NewEncoder(w).Encode(Page{})
	})

	rec, err := c.First(context.Background(), "appSchools", "Partners", Equal("Record ID", "recKnown"))
	require.NoError(t, err)
	assert.Equal(t, "recPartner", rec.ID)

	_, err = c.First(context.Background(), "appSchools", "Partners", Equal("Record ID", "recUnknown"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestContextCanceledWhileWaitingForLimiter(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Page{})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.List(ctx, "appGeo", "Area Contact", ListOptions{})
	require.Error(t, err)
}
