package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/airtable-api/internal/geoarea"
)

const sampleCatalog = `
geo_area_contacts:
  - id: recAustin
    name: Austin
    type: City
    first_contact_email: austin@example.org
    assigned_rse:
      synced_record_id: recSyncedRSE
    geocode:
      formatted_address: Austin, TX, USA
      geometry:
        location: {lat: 30.2672, lng: -97.7431}
        viewport:
          northeast: {lat: 30.5168, lng: -97.5684}
          southwest: {lat: 30.0987, lng: -97.9383}
      address_components:
        - {long_name: Texas, short_name: TX, types: [administrative_area_level_1]}
        - {long_name: United States, short_name: US, types: [country]}
  - id: recUS
    name: United States
    type: Default (US)
geographic_areas:
  - id: recNYC
    name: New York City
    type: Polygon
    polygon_coordinates: POLYGON((-74.0 40.7, -73.9 40.7, -73.9 40.8, -74.0 40.8))
    city_radius: 12
auto_response_email_templates:
  - id: recTpl
    geographic_areas: [recNYC]
    contact_type: Parent
    sendgrid_template_id: d-123
partners:
  - id: recPartner
    synced_record_id: recSyncedRSE
    name: Pat
  - id: recOther
    name: Sam
`

func TestParseFile(t *testing.T) {
	src, err := ParseFile(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	ctx := context.Background()

	contacts, err := src.ListAreas(ctx, geoarea.KindContacts)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, geoarea.KindContacts, contacts[0].Kind)
	assert.Equal(t, geoarea.DefaultCityRadius, contacts[0].CityRadius)
	require.NotNil(t, contacts[0].Geocode)
	assert.True(t, contacts[0].Geocode.InUnitedStates())
	assert.Equal(t, geoarea.TypeDefaultUS, contacts[1].Type)

	communities, err := src.ListAreas(ctx, geoarea.KindTargetCommunities)
	require.NoError(t, err)
	assert.Empty(t, communities)

	nyc, err := src.GetArea(ctx, geoarea.KindGeographicAreas, "recNYC")
	require.NoError(t, err)
	assert.Equal(t, 12, nyc.CityRadius)
	assert.Equal(t, geoarea.KindGeographicAreas, nyc.Kind)

	_, err = src.GetArea(ctx, geoarea.KindContacts, "recNYC")
	assert.True(t, IsNotFound(err))

	tpl, err := src.GetTemplate(ctx, "recTpl")
	require.NoError(t, err)
	assert.Equal(t, []string{"recNYC"}, tpl.GeographicAreaIDs)

	_, err = src.GetTemplate(ctx, "recMissing")
	assert.True(t, IsNotFound(err))

	p, err := src.FindPartnerBySyncedRecordID(ctx, "recSyncedRSE")
	require.NoError(t, err)
	assert.Equal(t, "recPartner", p.ID)

	p, err = src.FindPartnerBySyncedRecordID(ctx, "recOther")
	require.NoError(t, err)
	assert.Equal(t, "Sam", p.Name)

	_, err = src.FindPartnerBySyncedRecordID(ctx, "recNobody")
	assert.True(t, IsNotFound(err))
}

func TestParseFile_ExplicitZeroRadiusKept(t *testing.T) {
	src, err := ParseFile(strings.NewReader(`
geo_area_contacts:
  - id: recZero
    name: Austin
    type: City
    city_radius: 0
  - id: recUnset
    name: Dallas
    type: City
`))
	require.NoError(t, err)

	contacts, err := src.ListAreas(context.Background(), geoarea.KindContacts)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, 0, contacts[0].CityRadius)
	assert.Equal(t, geoarea.DefaultCityRadius, contacts[1].CityRadius)
}

func TestParseFile_Empty(t *testing.T) {
	src, err := ParseFile(strings.NewReader(""))
	require.NoError(t, err)
	areas, err := src.ListAreas(context.Background(), geoarea.KindContacts)
	require.NoError(t, err)
	assert.Empty(t, areas)
}

func TestParseFile_Errors(t *testing.T) {
	_, err := ParseFile(strings.NewReader("geo_area_contacts: [unclosed"))
	assert.Error(t, err)

	_, err = ParseFile(strings.NewReader("geographic_areas:\n  - name: No ID\n"))
	assert.ErrorContains(t, err, "has no id")

	_, err = ParseFile(strings.NewReader("auto_response_email_templates:\n  - contact_type: Parent\n"))
	assert.ErrorContains(t, err, "has no id")
}

func TestNewFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	src, err := NewFileSource(path)
	require.NoError(t, err)
	templates, err := src.ListTemplates(context.Background())
	require.NoError(t, err)
	assert.Len(t, templates, 1)

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFileSource_UnknownKind(t *testing.T) {
	src, err := ParseFile(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	_, err = src.ListAreas(context.Background(), geoarea.Kind("hubs"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}
