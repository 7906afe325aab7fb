package geom

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type kmlLineString struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPlacemark struct {
	Name       string          `xml:"name"`
	LineString *kmlLineString  `xml:"LineString"`
	Multi      []kmlLineString `xml:"MultiGeometry>LineString"`
}

// LoadKML extracts road lines from a KML file: Placemark > LineString and
// Placemark > MultiGeometry > LineString, at any folder depth.
// KML coordinates are "lon,lat[,alt]"; we ignore altitude.
func LoadKML(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseKML(data)
}

func ParseKML(data []byte) (*geojson.FeatureCollection, error) {
	var placemarks []kmlPlacemark
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("kml: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Placemark" {
			continue
		}
		var pm kmlPlacemark
		if err := dec.DecodeElement(&pm, &se); err != nil {
			return nil, fmt.Errorf("kml: %w", err)
		}
		placemarks = append(placemarks, pm)
	}

	fc := geojson.NewFeatureCollection()
	add := func(name, coords string) {
		ls := parseKMLCoordinates(coords)
		if len(ls) < 2 {
			return
		}
		f := geojson.NewFeature(ls)
		if name != "" {
			f.Properties["name"] = name
		}
		fc.Append(f)
	}
	for _, pm := range placemarks {
		if pm.LineString != nil {
			add(pm.Name, pm.LineString.Coordinates)
		}
		for _, m := range pm.Multi {
			add(pm.Name, m.Coordinates)
		}
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("kml: %w", ErrNoGeometries)
	}
	return fc, nil
}

// coordinates may contain multiple tuples separated by whitespace
func parseKMLCoordinates(s string) orb.LineString {
	var ls orb.LineString
	for _, tuple := range strings.Fields(s) {
		vals := strings.Split(tuple, ",")
		if len(vals) < 2 {
			continue
		}
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(vals[1]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		ls = append(ls, orb.Point{lon, lat})
	}
	return ls
}
