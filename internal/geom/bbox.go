package geom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

var ErrInvalidBBox = errors.New("invalid bbox")

// BBox is an axis-aligned lon/lat rectangle, always ordered
// [minLon, minLat, maxLon, maxLat].
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// FromSlice builds a BBox from the wire form [minLon, minLat, maxLon, maxLat].
func FromSlice(v []float64) (BBox, error) {
	if len(v) != 4 {
		return BBox{}, fmt.Errorf("%w: want 4 numbers, got %d", ErrInvalidBBox, len(v))
	}
	b := BBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
	if !b.Valid() {
		return BBox{}, fmt.Errorf("%w: %v", ErrInvalidBBox, v)
	}
	return b, nil
}

func FromBound(b orb.Bound) BBox {
	return BBox{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}
}

func (b BBox) Valid() bool {
	return b.MaxX >= b.MinX && b.MaxY >= b.MinY
}

func (b BBox) Slice() []float64 {
	return []float64{b.MinX, b.MinY, b.MaxX, b.MaxY}
}

func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

// Center is the per-axis midpoint.
func (b BBox) Center() orb.Point {
	return orb.Point{(b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2}
}

// ImageCorners returns the raster corner order: top-left, top-right,
// bottom-right, bottom-left.
func (b BBox) ImageCorners() [4]orb.Point {
	return [4]orb.Point{
		{b.MinX, b.MaxY},
		{b.MaxX, b.MaxY},
		{b.MaxX, b.MinY},
		{b.MinX, b.MinY},
	}
}

// Outline is the closed ring through the image corners.
func (b BBox) Outline() orb.Ring {
	c := b.ImageCorners()
	return orb.Ring{c[0], c[1], c[2], c[3], c[0]}
}

// QueryParam formats the bbox as "minLon,minLat,maxLon,maxLat".
func (b BBox) QueryParam() string {
	parts := make([]string, 0, 4)
	for _, v := range b.Slice() {
		parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

func (b BBox) String() string {
	return fmt.Sprintf("[%.5f, %.5f, %.5f, %.5f]", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// ParseBBox reads "minLon,minLat,maxLon,maxLat"; commas and spaces both
// separate values.
func ParseBBox(s string) (BBox, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	v := make([]float64, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return BBox{}, fmt.Errorf("%w: %q is not a number", ErrInvalidBBox, f)
		}
		v = append(v, n)
	}
	return FromSlice(v)
}
