package geoarea

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/airtable-api/internal/geo"
	"github.com/sells-group/airtable-api/pkg/geocode"
)

// ErrNoArea is returned by ResolveAddress when nothing matched and the
// applicable default area is not configured.
var ErrNoArea = eris.New("geoarea: no area configured for address")

// Match names the tier that produced a resolution.
type Match string

// Resolution tiers, most specific first.
const (
	MatchCity    Match = "city"
	MatchPolygon Match = "polygon"
	MatchRegion  Match = "region"
	MatchState   Match = "state"
	MatchCountry Match = "country"
	MatchDefault Match = "default"
	MatchNone    Match = "none"
)

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStrictPolygons makes a malformed polygon fail the resolution instead of
// being skipped.
func WithStrictPolygons(strict bool) ResolverOption {
	return func(r *Resolver) {
		r.strictPolygons = strict
	}
}

// WithMatchObserver registers fn to be called with the tier of every
// completed resolution.
func WithMatchObserver(fn func(Match)) ResolverOption {
	return func(r *Resolver) {
		r.observe = fn
	}
}

// Resolver maps a place to the most specific configured area. It holds no
// per-call state and is safe for concurrent use.
type Resolver struct {
	geocoder       Geocoder
	strictPolygons bool
	observe        func(Match)
}

// NewResolver creates a Resolver. geocoder is used for areas that carry no
// stored geocode payload and should cache its results.
func NewResolver(geocoder Geocoder, opts ...ResolverOption) *Resolver {
	r := &Resolver{geocoder: geocoder}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the area responsible for point. Tiers are tried in order:
// nearest City within its radius, first Polygon containing the point, first
// Region whose viewport contains it, first State, first Country, then the US
// or international default by the point's country code. A nil area with
// MatchNone means nothing matched and the default is absent. Geocoder errors
// are returned as-is.
func (r *Resolver) Resolve(ctx context.Context, point *geocode.Place, catalog []Area) (*Area, Match, error) {
	area, match, err := r.resolve(ctx, point, Classify(catalog))
	if err == nil && r.observe != nil {
		r.observe(match)
	}
	return area, match, err
}

func (r *Resolver) resolve(ctx context.Context, point *geocode.Place, b Buckets) (*Area, Match, error) {
	if area, err := r.nearestCity(ctx, point, b.Cities); err != nil || area != nil {
		return area, MatchCity, err
	}
	if area, err := r.firstPolygon(point, b.Polygons); err != nil || area != nil {
		return area, MatchPolygon, err
	}

	tiers := []struct {
		match Match
		areas []*Area
		test  func(point, area *geocode.Place) bool
	}{
		{MatchRegion, b.Regions, geo.IsContainedWithinViewport},
		{MatchState, b.States, geo.IsSameState},
		{MatchCountry, b.Countries, geo.IsSameCountry},
	}
	for _, tier := range tiers {
		area, err := r.firstPlaceMatch(ctx, point, tier.areas, tier.test)
		if err != nil || area != nil {
			return area, tier.match, err
		}
	}

	def := b.DefaultInternational
	if point.InUnitedStates() {
		def = b.DefaultUS
	}
	if def == nil {
		return nil, MatchNone, nil
	}
	return def, MatchDefault, nil
}

func (r *Resolver) nearestCity(ctx context.Context, point *geocode.Place, cities []*Area) (*Area, error) {
	var (
		best     *Area
		bestDist float64
	)
	for _, a := range cities {
		center, err := r.areaPlace(ctx, a)
		if err != nil {
			return nil, err
		}
		if center == nil {
			continue
		}
		if !geo.IsWithinRadius(point, center, a.Radius()) {
			continue
		}
		// Strict less-than keeps the earlier area on equal distances.
		if d := geo.Distance(point.Location(), center.Location()); best == nil || d < bestDist {
			best, bestDist = a, d
		}
	}
	return best, nil
}

func (r *Resolver) firstPolygon(point *geocode.Place, polygons []*Area) (*Area, error) {
	for _, a := range polygons {
		ring, err := geo.ParsePolygon(a.PolygonCoordinates)
		if err != nil {
			if r.strictPolygons {
				return nil, eris.Wrapf(err, "geoarea: area %s (%s)", a.ID, a.Name)
			}
			zap.L().Warn("skipping area with malformed polygon",
				zap.String("area_id", a.ID),
				zap.String("area_name", a.Name),
				zap.Error(err),
			)
			continue
		}
		if geo.PointInPolygon(point.Location(), ring) {
			return a, nil
		}
	}
	return nil, nil
}

func (r *Resolver) firstPlaceMatch(ctx context.Context, point *geocode.Place, areas []*Area, test func(point, area *geocode.Place) bool) (*Area, error) {
	for _, a := range areas {
		p, err := r.areaPlace(ctx, a)
		if err != nil {
			return nil, err
		}
		if p != nil && test(point, p) {
			return a, nil
		}
	}
	return nil, nil
}

// areaPlace returns the area's place, or nil when it cannot be used for
// geometric matching.
func (r *Resolver) areaPlace(ctx context.Context, a *Area) (*geocode.Place, error) {
	p, err := a.Place(ctx, r.geocoder)
	if err != nil {
		return nil, eris.Wrapf(err, "geoarea: geocode area %s", a.ID)
	}
	if p == nil || p.Geometry == nil {
		zap.L().Warn("skipping area without a geocode",
			zap.String("area_id", a.ID),
			zap.String("area_name", a.Name),
		)
		return nil, nil
	}
	return p, nil
}

// ResolveAddress geocodes address and resolves it against catalog. It returns
// geocode.ErrUnresolvableAddress when the address has no place and ErrNoArea
// when no area applies.
func (r *Resolver) ResolveAddress(ctx context.Context, address string, catalog []Area) (*Area, *geocode.Place, Match, error) {
	if r.geocoder == nil {
		return nil, nil, MatchNone, eris.New("geoarea: resolver has no geocoder")
	}
	point, err := geocode.Require(ctx, r.geocoder, address)
	if err != nil {
		return nil, nil, MatchNone, err
	}
	area, match, err := r.Resolve(ctx, point, catalog)
	if err != nil {
		return nil, point, match, err
	}
	if area == nil {
		return nil, point, MatchNone, eris.Wrapf(ErrNoArea, "address %q", address)
	}
	return area, point, match, nil
}
