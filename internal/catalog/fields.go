package catalog

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/airtable-api/pkg/geocode"
)

// Lookup and rollup columns arrive as single-element lists. The first* helpers
// take the first element of a list, or the value itself, or the zero value.

func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) == 0 {
			return ""
		}
		return firstString(t[0])
	case []string:
		if len(t) == 0 {
			return ""
		}
		return t[0]
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func firstFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case []any:
		if len(t) == 0 {
			return 0, false
		}
		return firstFloat(t[0])
	default:
		return 0, false
	}
}

func firstFloatPtr(v any) *float64 {
	f, ok := firstFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func firstInt(v any, def int) int {
	f, ok := firstFloat(v)
	if !ok {
		return def
	}
	return int(f)
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := firstString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

// parseGeocode decodes a stored Geocode column. Payloads that fail to decode
// are logged and treated as absent so the area name is geocoded instead.
func parseGeocode(recordID string, v any) *geocode.Place {
	var data []byte
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		data = b
	default:
		s := strings.TrimSpace(firstString(v))
		if s == "" {
			return nil
		}
		data = []byte(s)
	}

	var place geocode.Place
	if err := json.Unmarshal(data, &place); err != nil {
		zap.L().Warn("catalog: invalid geocode payload",
			zap.String("record_id", recordID),
			zap.Error(err),
		)
		return nil
	}
	if place.Geometry == nil {
		zap.L().Warn("catalog: geocode payload has no geometry",
			zap.String("record_id", recordID),
		)
		return nil
	}
	return &place
}
