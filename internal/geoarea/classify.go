package geoarea

import "go.uber.org/zap"

// Buckets partitions a catalog by area type. Multi-valued buckets keep
// catalog order; the defaults are last-write-wins.
type Buckets struct {
	DefaultUS            *Area
	DefaultInternational *Area
	Cities               []*Area
	Polygons             []*Area
	Regions              []*Area
	States               []*Area
	Countries            []*Area
}

// Classify partitions catalog in a single pass. The returned pointers refer
// into catalog.
func Classify(catalog []Area) Buckets {
	var b Buckets
	for i := range catalog {
		a := &catalog[i]
		switch a.Type {
		case TypeDefaultUS:
			b.DefaultUS = a
		case TypeDefaultInternational:
			b.DefaultInternational = a
		case TypeCity:
			b.Cities = append(b.Cities, a)
		case TypePolygon:
			b.Polygons = append(b.Polygons, a)
		case TypeRegion:
			b.Regions = append(b.Regions, a)
		case TypeState:
			b.States = append(b.States, a)
		case TypeCountry:
			b.Countries = append(b.Countries, a)
		default:
			zap.L().Debug("ignoring area with unknown type",
				zap.String("area_id", a.ID),
				zap.String("area_type", string(a.Type)),
			)
		}
	}
	return b
}
