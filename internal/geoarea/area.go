// Package geoarea maps geocoded places to configured geographic areas and
// selects auto-response e-mail templates by geography.
package geoarea

import (
	"context"

	"github.com/sells-group/airtable-api/pkg/geocode"
)

// Kind identifies which area table a record came from.
type Kind string

// Area kinds.
const (
	KindContacts          Kind = "geo_area_contacts"
	KindTargetCommunities Kind = "geo_area_target_communities"
	KindGeographicAreas   Kind = "geographic_areas"
)

// Kinds lists every area kind in routing order.
var Kinds = []Kind{KindContacts, KindTargetCommunities, KindGeographicAreas}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// AreaType is the shape type of an area.
type AreaType string

// Area types as stored in the "Area Type" column.
const (
	TypeCity                 AreaType = "City"
	TypePolygon              AreaType = "Polygon"
	TypeRegion               AreaType = "Region"
	TypeState                AreaType = "State"
	TypeCountry              AreaType = "Country"
	TypeDefaultUS            AreaType = "Default (US)"
	TypeDefaultInternational AreaType = "Default (International)"
)

// DefaultCityRadius is the radius in miles used when a City area has none.
const DefaultCityRadius = 30

// Relation references a linked record in another base.
type Relation struct {
	ID             string `json:"id,omitempty" yaml:"id,omitempty"`
	SyncedRecordID string `json:"synced_record_id,omitempty" yaml:"synced_record_id,omitempty"`
	Name           string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Area is a configured geographic area: a contact, a target community, or a
// geographic area record.
type Area struct {
	ID                 string         `json:"id" yaml:"id"`
	Kind               Kind           `json:"kind" yaml:"kind"`
	Name               string         `json:"area_name" yaml:"name"`
	Type               AreaType       `json:"area_type" yaml:"type"`
	CityRadius         int            `json:"city_radius,omitempty" yaml:"city_radius,omitempty"`
	PolygonCoordinates string         `json:"polygon_coordinates,omitempty" yaml:"polygon_coordinates,omitempty"`
	Geocode            *geocode.Place `json:"geocode,omitempty" yaml:"geocode,omitempty"`
	Latitude           *float64       `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude          *float64       `json:"longitude,omitempty" yaml:"longitude,omitempty"`

	FirstContactEmail            string    `json:"first_contact_email,omitempty" yaml:"first_contact_email,omitempty"`
	SendgridTemplateID           string    `json:"sendgrid_template_id,omitempty" yaml:"sendgrid_template_id,omitempty"`
	AssignedRSE                  *Relation `json:"assigned_rse,omitempty" yaml:"assigned_rse,omitempty"`
	Hub                          *Relation `json:"hub,omitempty" yaml:"hub,omitempty"`
	TargetCommunity              *Relation `json:"target_community,omitempty" yaml:"target_community,omitempty"`
	AutoResponseEmailTemplateIDs []string  `json:"auto_response_email_templates,omitempty" yaml:"auto_response_email_templates,omitempty"`
}

// Radius returns the City radius in miles. Loaders apply DefaultCityRadius
// when the column is absent; a stored zero is kept.
func (a *Area) Radius() float64 {
	return float64(a.CityRadius)
}

// Geocoder resolves an address to a place. A nil place means no result.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geocode.Place, error)
}

// Place returns the area's own place: the stored geocode payload when
// present, otherwise the geocoded area name.
func (a *Area) Place(ctx context.Context, g Geocoder) (*geocode.Place, error) {
	if a.Geocode != nil {
		return a.Geocode, nil
	}
	if g == nil || a.Name == "" {
		return nil, nil
	}
	return g.Geocode(ctx, a.Name)
}
