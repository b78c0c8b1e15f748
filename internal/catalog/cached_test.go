package catalog

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/airtable-api/internal/geoarea"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListAreas(ctx context.Context, kind geoarea.Kind) ([]geoarea.Area, error) {
	args := m.Called(ctx, kind)
	areas, _ := args.Get(0).([]geoarea.Area)
	return areas, args.Error(1)
}

func (m *mockSource) GetArea(ctx context.Context, kind geoarea.Kind, id string) (*geoarea.Area, error) {
	args := m.Called(ctx, kind, id)
	area, _ := args.Get(0).(*geoarea.Area)
	return area, args.Error(1)
}

func (m *mockSource) ListTemplates(ctx context.Context) ([]geoarea.Template, error) {
	args := m.Called(ctx)
	templates, _ := args.Get(0).([]geoarea.Template)
	return templates, args.Error(1)
}

func (m *mockSource) GetTemplate(ctx context.Context, id string) (*geoarea.Template, error) {
	args := m.Called(ctx, id)
	tpl, _ := args.Get(0).(*geoarea.Template)
	return tpl, args.Error(1)
}

func (m *mockSource) FindPartnerBySyncedRecordID(ctx context.Context, syncedID string) (*Partner, error) {
	args := m.Called(ctx, syncedID)
	p, _ := args.Get(0).(*Partner)
	return p, args.Error(1)
}

func TestCachedSource_ListAreasCached(t *testing.T) {
	next := &mockSource{}
	next.On("ListAreas", mock.Anything, geoarea.KindContacts).
		Return([]geoarea.Area{{ID: "recAustin"}}, nil).Once()
	next.On("ListAreas", mock.Anything, geoarea.KindGeographicAreas).
		Return([]geoarea.Area{{ID: "recNYC"}}, nil).Once()

	c := NewCachedSource(next, CacheOptions{})
	ctx := context.Background()
	for range 3 {
		areas, err := c.ListAreas(ctx, geoarea.KindContacts)
		require.NoError(t, err)
		assert.Equal(t, "recAustin", areas[0].ID)
	}
	areas, err := c.ListAreas(ctx, geoarea.KindGeographicAreas)
	require.NoError(t, err)
	assert.Equal(t, "recNYC", areas[0].ID)

	next.AssertExpectations(t)
	stats := c.Stats()["area_lists"]
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, 2, stats.Entries)
}

func TestCachedSource_ErrorsNotCached(t *testing.T) {
	next := &mockSource{}
	next.On("GetArea", mock.Anything, geoarea.KindContacts, "recAustin").
		Return(nil, eris.New("airtable: status 503")).Once()
	next.On("GetArea", mock.Anything, geoarea.KindContacts, "recAustin").
		Return(&geoarea.Area{ID: "recAustin", Name: "Austin"}, nil).Once()

	c := NewCachedSource(next, CacheOptions{})
	ctx := context.Background()

	_, err := c.GetArea(ctx, geoarea.KindContacts, "recAustin")
	require.Error(t, err)

	a, err := c.GetArea(ctx, geoarea.KindContacts, "recAustin")
	require.NoError(t, err)
	assert.Equal(t, "Austin", a.Name)

	a, err = c.GetArea(ctx, geoarea.KindContacts, "recAustin")
	require.NoError(t, err)
	assert.Equal(t, "Austin", a.Name)
	next.AssertExpectations(t)
}

func TestCachedSource_RecordsAreCopies(t *testing.T) {
	next := &mockSource{}
	next.On("GetTemplate", mock.Anything, "recTpl").
		Return(&geoarea.Template{ID: "recTpl", Language: "English"}, nil).Once()
	next.On("FindPartnerBySyncedRecordID", mock.Anything, "recSynced").
		Return(&Partner{ID: "recPartner", Name: "Pat"}, nil).Once()

	c := NewCachedSource(next, CacheOptions{})
	ctx := context.Background()

	tpl, err := c.GetTemplate(ctx, "recTpl")
	require.NoError(t, err)
	tpl.Language = "Spanish"
	tpl, err = c.GetTemplate(ctx, "recTpl")
	require.NoError(t, err)
	assert.Equal(t, "English", tpl.Language)

	p, err := c.FindPartnerBySyncedRecordID(ctx, "recSynced")
	require.NoError(t, err)
	p.Name = "changed"
	p, err = c.FindPartnerBySyncedRecordID(ctx, "recSynced")
	require.NoError(t, err)
	assert.Equal(t, "Pat", p.Name)
	next.AssertExpectations(t)
}

func TestCachedSource_Invalidate(t *testing.T) {
	next := &mockSource{}
	next.On("ListTemplates", mock.Anything).Return([]geoarea.Template{{ID: "recTpl"}}, nil).Twice()

	c := NewCachedSource(next, CacheOptions{})
	ctx := context.Background()
	_, err := c.ListTemplates(ctx)
	require.NoError(t, err)
	_, err = c.ListTemplates(ctx)
	require.NoError(t, err)

	c.Invalidate()
	_, err = c.ListTemplates(ctx)
	require.NoError(t, err)
	next.AssertExpectations(t)
}

func TestCachedSource_NotFoundPassesThrough(t *testing.T) {
	next := &mockSource{}
	next.On("GetTemplate", mock.Anything, "recMissing").
		Return(nil, eris.Wrap(ErrNotFound, "catalog: get template recMissing"))

	c := NewCachedSource(next, CacheOptions{})
	_, err := c.GetTemplate(context.Background(), "recMissing")
	assert.True(t, IsNotFound(err))
}

func TestLoadTemplateCatalog(t *testing.T) {
	src, err := ParseFile(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	tc, err := LoadTemplateCatalog(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, tc.Templates, 1)
	require.Len(t, tc.Areas, 1)
	assert.Equal(t, "recNYC", tc.Areas[0].ID)
}

func TestLoadTemplateCatalog_Error(t *testing.T) {
	next := &mockSource{}
	next.On("ListTemplates", mock.Anything).Return(nil, eris.New("boom"))
	next.On("ListAreas", mock.Anything, geoarea.KindGeographicAreas).Return([]geoarea.Area{}, nil).Maybe()

	_, err := LoadTemplateCatalog(context.Background(), next)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

type countingSource struct {
	Source
	lists atomic.Int32
}

func (s *countingSource) ListAreas(ctx context.Context, kind geoarea.Kind) ([]geoarea.Area, error) {
	s.lists.Add(1)
	return s.Source.ListAreas(ctx, kind)
}

func TestPreload(t *testing.T) {
	file, err := ParseFile(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	counting := &countingSource{Source: file}
	c := NewCachedSource(counting, CacheOptions{})

	require.NoError(t, Preload(context.Background(), c, 2))
	assert.Equal(t, int32(len(geoarea.Kinds)), counting.lists.Load())

	// Served from cache afterwards.
	_, err = c.ListAreas(context.Background(), geoarea.KindContacts)
	require.NoError(t, err)
	assert.Equal(t, int32(len(geoarea.Kinds)), counting.lists.Load())
}
