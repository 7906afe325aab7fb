package geom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

var ErrNotLine = errors.New("wkt: not a line geometry")

// ParseLinesWKT parses LINESTRING or MULTILINESTRING text into line strings
// of at least two vertices each.
func ParseLinesWKT(s string) ([]orb.LineString, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty wkt")
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("wkt: %w", err)
	}
	var lines []orb.LineString
	switch v := g.(type) {
	case orb.LineString:
		lines = append(lines, v)
	case orb.MultiLineString:
		lines = append(lines, v...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotLine, g.GeoJSONType())
	}
	out := lines[:0]
	for _, ls := range lines {
		if len(ls) >= 2 {
			out = append(out, ls)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("wkt: no line with two or more vertices")
	}
	return out, nil
}

// LinesCollection wraps lines as features without ids.
func LinesCollection(lines []orb.LineString) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, ls := range lines {
		fc.Append(geojson.NewFeature(ls))
	}
	return fc
}
