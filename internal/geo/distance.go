package geo

import (
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"

	"github.com/sells-group/airtable-api/pkg/geocode"
)

const metersPerMile = 1609.344

// Point converts a lat/lng pair to an orb point (x = lng, y = lat).
func Point(ll geocode.LatLng) orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// Distance returns the great-circle (haversine) distance in miles.
func Distance(a, b geocode.LatLng) float64 {
	return orbgeo.DistanceHaversine(Point(a), Point(b)) / metersPerMile
}

// IsWithinRadius reports whether point lies within radiusMiles of center's
// location. The radius is inclusive.
func IsWithinRadius(point, center *geocode.Place, radiusMiles float64) bool {
	return Distance(point.Location(), center.Location()) <= radiusMiles
}

// IsContainedWithinViewport reports whether point's location lies inside
// bounding's viewport, edges included. Viewports crossing the antimeridian
// are not supported.
func IsContainedWithinViewport(point, bounding *geocode.Place) bool {
	vp := bounding.Geometry.Viewport
	b := orb.Bound{
		Min: Point(vp.Southwest),
		Max: Point(vp.Northeast),
	}
	return b.Contains(Point(point.Location()))
}

// IsSameState reports whether both places carry a state component with the
// same short name.
func IsSameState(a, b *geocode.Place) bool {
	return sameShortName(a.State(), b.State())
}

// IsSameCountry reports whether both places carry a country component with
// the same short name.
func IsSameCountry(a, b *geocode.Place) bool {
	return sameShortName(a.Country(), b.Country())
}

func sameShortName(a, b *geocode.AddressComponent) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ShortName == b.ShortName
}
