package geo

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/sells-group/airtable-api/pkg/geocode"
)

// ErrMalformedPolygon is wrapped by every ParsePolygon failure.
var ErrMalformedPolygon = eris.New("geo: malformed polygon coordinates")

// Ring is a polygon's outer boundary as lat/lng vertices. Rings returned by
// ParsePolygon are closed.
type Ring []geocode.LatLng

// polygonPattern accepts an optional label (POLYGON, any case), one or more
// opening parentheses, and captures the coordinate list up to the first
// closing parenthesis.
var polygonPattern = regexp.MustCompile(`(?is)^\s*(?:[a-z]+\s*)?(?:\(\s*)+([^()]+?)\s*\)`)

// ParsePolygon extracts a ring from WKT-like text such as
// "POLYGON ((lng lat, lng lat, ...))". Coordinates are longitude first, as in
// WKT; the returned ring is latitude first.
func ParsePolygon(s string) (Ring, error) {
	m := polygonPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, eris.Wrap(ErrMalformedPolygon, "no coordinate list found")
	}

	pairs := strings.Split(m[1], ",")
	ring := make(Ring, 0, len(pairs)+1)
	for i, pair := range pairs {
		fields := strings.Fields(pair)
		if len(fields) != 2 {
			return nil, eris.Wrapf(ErrMalformedPolygon, "vertex %d: expected \"lng lat\", got %q", i, strings.TrimSpace(pair))
		}
		lng, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, eris.Wrapf(ErrMalformedPolygon, "vertex %d: longitude %q", i, fields[0])
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, eris.Wrapf(ErrMalformedPolygon, "vertex %d: latitude %q", i, fields[1])
		}
		ring = append(ring, geocode.LatLng{Lat: lat, Lng: lng})
	}

	ring = ring.closed()
	if ring.distinct() < 3 {
		return nil, eris.Wrapf(ErrMalformedPolygon, "need at least 3 distinct vertices, got %d", ring.distinct())
	}
	return ring, nil
}

// PointInPolygon reports whether point lies inside ring. Points on the
// boundary count as inside. Open rings are closed implicitly.
func PointInPolygon(point geocode.LatLng, ring Ring) bool {
	if ring.distinct() < 3 {
		return false
	}
	return planar.RingContains(ring.orb(), Point(point))
}

// FormatPolygon renders ring as normalized WKT, longitude first.
func FormatPolygon(ring Ring) (string, error) {
	closed := ring.closed()
	coords := make([]geom.Coord, len(closed))
	for i, ll := range closed {
		coords[i] = geom.Coord{ll.Lng, ll.Lat}
	}
	p, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
	if err != nil {
		return "", eris.Wrap(err, "geo: build polygon")
	}
	s, err := wkt.Marshal(p)
	if err != nil {
		return "", eris.Wrap(err, "geo: marshal wkt")
	}
	return s, nil
}

// Centroid returns the area-weighted centroid of ring.
func Centroid(ring Ring) geocode.LatLng {
	c, _ := planar.CentroidArea(orb.Polygon{ring.orb()})
	return geocode.LatLng{Lat: c.Y(), Lng: c.X()}
}

func (r Ring) orb() orb.Ring {
	closed := r.closed()
	out := make(orb.Ring, len(closed))
	for i, ll := range closed {
		out[i] = Point(ll)
	}
	return out
}

func (r Ring) closed() Ring {
	if len(r) == 0 || r[0] == r[len(r)-1] {
		return r
	}
	out := make(Ring, len(r), len(r)+1)
	copy(out, r)
	return append(out, r[0])
}

func (r Ring) distinct() int {
	seen := make(map[geocode.LatLng]struct{}, len(r))
	for _, ll := range r {
		seen[ll] = struct{}{}
	}
	return len(seen)
}
