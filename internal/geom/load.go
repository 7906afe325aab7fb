package geom

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
)

var ErrUnsupportedFile = errors.New("unsupported file type")

// Importable reports whether LoadFile understands the file's extension.
func Importable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json", ".wkt", ".kml", ".csv":
		return true
	}
	return false
}

// LoadFile reads roads from a GeoJSON, WKT, KML or CSV file.
func LoadFile(path string) (*geojson.FeatureCollection, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return LoadFeatures(path)
	case ".wkt":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		lines, err := ParseLinesWKT(string(data))
		if err != nil {
			return nil, err
		}
		return LinesCollection(lines), nil
	case ".kml":
		return LoadKML(path)
	case ".csv":
		return LoadCSV(path)
	}
	return nil, ErrUnsupportedFile
}
