package geocode

// Address component types used by the area resolver.
const (
	ComponentLocality       = "locality"
	ComponentColloquial     = "colloquial_area"
	ComponentState          = "administrative_area_level_1"
	ComponentCountry        = "country"
	ComponentPostalCode     = "postal_code"
	countryCodeUnitedStates = "US"
)

// LatLng is a latitude/longitude pair in degrees.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Bounds is a rectangle given by its northeast and southwest corners.
type Bounds struct {
	Northeast LatLng `json:"northeast" yaml:"northeast"`
	Southwest LatLng `json:"southwest" yaml:"southwest"`
}

// Geometry holds the resolved point and its approximate extent.
type Geometry struct {
	Location     LatLng `json:"location" yaml:"location"`
	Viewport     Bounds `json:"viewport" yaml:"viewport"`
	LocationType string `json:"location_type,omitempty" yaml:"location_type,omitempty"`
}

// AddressComponent is one typed fragment of a geocoded address.
type AddressComponent struct {
	LongName  string   `json:"long_name" yaml:"long_name"`
	ShortName string   `json:"short_name" yaml:"short_name"`
	Types     []string `json:"types" yaml:"types"`
}

// Place is a geocoded address. The JSON shape matches a single Google
// Geocoding API result, which is also the shape stored in Airtable's
// "Geocode" column.
type Place struct {
	AddressComponents []AddressComponent `json:"address_components,omitempty" yaml:"address_components,omitempty"`
	FormattedAddress  string             `json:"formatted_address,omitempty" yaml:"formatted_address,omitempty"`
	Geometry          *Geometry          `json:"geometry,omitempty" yaml:"geometry,omitempty"`
	PlaceID           string             `json:"place_id,omitempty" yaml:"place_id,omitempty"`
	Types             []string           `json:"types,omitempty" yaml:"types,omitempty"`
}

// Location returns the resolved point. It panics when the place has no geometry.
func (p *Place) Location() LatLng {
	return p.Geometry.Location
}

// Component returns the first address component carrying typ, or nil.
func (p *Place) Component(typ string) *AddressComponent {
	if p == nil {
		return nil
	}
	for i := range p.AddressComponents {
		for _, t := range p.AddressComponents[i].Types {
			if t == typ {
				return &p.AddressComponents[i]
			}
		}
	}
	return nil
}

// Locality returns the city component, or nil.
func (p *Place) Locality() *AddressComponent { return p.Component(ComponentLocality) }

// ColloquialArea returns the colloquial area component, or nil.
func (p *Place) ColloquialArea() *AddressComponent { return p.Component(ComponentColloquial) }

// State returns the administrative_area_level_1 component, or nil.
func (p *Place) State() *AddressComponent { return p.Component(ComponentState) }

// Country returns the country component, or nil.
func (p *Place) Country() *AddressComponent { return p.Component(ComponentCountry) }

// InUnitedStates reports whether the country component is "US".
func (p *Place) InUnitedStates() bool {
	c := p.Country()
	return c != nil && c.ShortName == countryCodeUnitedStates
}
