package geom

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrNoGeometries = errors.New("no geometries found")

// LoadFeatures reads a GeoJSON file and returns its features as a collection.
func LoadFeatures(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFeatures(data)
}

// ParseFeatures accepts a FeatureCollection, a single Feature or a bare
// geometry and always returns a FeatureCollection.
func ParseFeatures(data []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	switch head.Type {
	case "FeatureCollection":
		parsed, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		for _, f := range parsed.Features {
			if f.Geometry != nil {
				fc.Append(f)
			}
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		if f.Geometry != nil {
			fc.Append(f)
		}
	case "":
		return nil, errors.New("invalid geojson: missing type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("unsupported geojson type %q: %w", head.Type, err)
		}
		if geo := g.Geometry(); geo != nil {
			fc.Append(geojson.NewFeature(geo))
		}
	}
	if len(fc.Features) == 0 {
		return nil, ErrNoGeometries
	}
	return fc, nil
}

// Bounds returns the extent of every feature geometry in fc.
func Bounds(fc *geojson.FeatureCollection) (BBox, bool) {
	if fc == nil {
		return BBox{}, false
	}
	var (
		b  orb.Bound
		ok bool
	)
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if !ok {
			b, ok = fb, true
			continue
		}
		b = b.Union(fb)
	}
	return FromBound(b), ok
}

// Roads keeps the line features of fc. Each MultiLineString is split into
// one feature per part sharing the source properties; parts lose the source
// id. Other geometries and lines with fewer than two vertices are dropped
// and counted in skipped.
func Roads(fc *geojson.FeatureCollection) (roads *geojson.FeatureCollection, skipped int) {
	roads = geojson.NewFeatureCollection()
	if fc == nil {
		return roads, 0
	}
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.LineString:
			if len(g) < 2 {
				skipped++
				continue
			}
			roads.Append(f)
		case orb.MultiLineString:
			for _, ls := range g {
				if len(ls) < 2 {
					skipped++
					continue
				}
				part := geojson.NewFeature(ls.Clone())
				if f.Properties != nil {
					part.Properties = f.Properties.Clone()
				}
				roads.Append(part)
			}
		default:
			skipped++
		}
	}
	return roads, skipped
}
