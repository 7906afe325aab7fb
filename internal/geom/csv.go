package geom

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LoadCSV reads a GPS-track style CSV and returns one line per road.
// Column detection: lat|latitude|y and lon|lng|long|longitude|x (case-insensitive).
// An optional road|line|track|id column splits rows into separate lines;
// without it the whole file is one line. Rows keep file order.
func LoadCSV(path string) (*geojson.FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.New("empty csv")
	}
	idxLat, idxLon, idxKey := -1, -1, -1
	for i, h := range recs[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "lat", "latitude", "y":
			if idxLat == -1 {
				idxLat = i
			}
		case "lon", "lng", "long", "longitude", "x":
			if idxLon == -1 {
				idxLon = i
			}
		case "road", "line", "track", "id":
			if idxKey == -1 {
				idxKey = i
			}
		}
	}
	if idxLat == -1 || idxLon == -1 {
		return nil, errors.New("csv: latitude/longitude columns not found")
	}

	var (
		keys  []string
		lines = map[string]orb.LineString{}
	)
	for _, row := range recs[1:] {
		if idxLon >= len(row) || idxLat >= len(row) {
			continue
		}
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(row[idxLon]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(row[idxLat]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		key := ""
		if idxKey >= 0 && idxKey < len(row) {
			key = strings.TrimSpace(row[idxKey])
		}
		if _, ok := lines[key]; !ok {
			keys = append(keys, key)
		}
		lines[key] = append(lines[key], orb.Point{lon, lat})
	}

	fc := geojson.NewFeatureCollection()
	for _, k := range keys {
		ls := lines[k]
		if len(ls) < 2 {
			continue
		}
		f := geojson.NewFeature(ls)
		if k != "" {
			f.Properties["name"] = k
		}
		fc.Append(f)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("csv: %w", ErrNoGeometries)
	}
	return fc, nil
}
