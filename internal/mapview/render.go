package mapview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// tileGrid is the spacing, in micro-pixels, of the base layer grid.
const tileGrid = 32

// Render draws every visible layer in order and returns the viewport as
// terminal lines joined by newlines.
func (m *Map) Render() string {
	if m.w <= 0 || m.h <= 0 || m.removed {
		return ""
	}
	c := newCanvas(m.w, m.h)
	for _, l := range m.layers {
		if l.Hidden {
			continue
		}
		src, ok := m.sources[l.Source]
		if !ok {
			continue
		}
		switch l.Kind {
		case LayerRaster:
			switch src.Kind {
			case SourceTiles:
				m.drawTileGrid(c, l.Paint)
			case SourceImage:
				m.drawImage(c, l.Source, src, l.Paint)
			}
		case LayerLine:
			m.drawLines(c, src.Data, l)
		case LayerCircle:
			m.drawCircles(c, src.Data, l)
		}
	}
	return strings.Join(c.toLines(), "\n")
}

// drawTileGrid stands in for base tiles: a faint grid aligned to world
// pixels so it moves with the map.
func (m *Map) drawTileGrid(c *canvas, p Paint) {
	col := p.Color
	if col == "" {
		col = lipgloss.Color("#30363D")
	}
	ox, oy := m.worldPixel(m.center)
	left := int(ox) - m.w
	top := int(oy) - m.h*2
	for my := 0; my < m.h*4; my++ {
		if (top+my)%tileGrid != 0 {
			continue
		}
		for mx := 0; mx < m.w*2; mx++ {
			if (left+mx)%tileGrid == 0 {
				c.setPixel(mx, my, col)
			}
		}
	}
}

func (m *Map) drawImage(c *canvas, id string, src *Source, p Paint) {
	grid, ok := m.raster[id]
	if !ok {
		return
	}
	tl, br := src.Coordinates[0], src.Coordinates[2]
	if br[0] <= tl[0] || tl[1] <= br[1] {
		return
	}
	for cy := 0; cy < m.h; cy++ {
		for cx := 0; cx < m.w; cx++ {
			pt := m.Unproject(cx, cy)
			u := (pt[0] - tl[0]) / (br[0] - tl[0])
			v := (tl[1] - pt[1]) / (tl[1] - br[1])
			if col, ok := grid.sample(u, v, p.Opacity); ok {
				c.setBackground(cx, cy, col)
			}
		}
	}
}

func (m *Map) drawLines(c *canvas, fc *geojson.FeatureCollection, l Layer) {
	if fc == nil {
		return
	}
	col := l.Paint.Color
	line := func(ls []orb.Point) {
		for i := 1; i < len(ls); i++ {
			x0, y0 := m.Project(ls[i-1])
			x1, y1 := m.Project(ls[i])
			c.drawLineMicro(x0, y0, x1, y1, col)
		}
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil || (l.Filter != nil && !l.Filter(f)) {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.LineString:
			line(g)
		case orb.MultiLineString:
			for _, ls := range g {
				line(ls)
			}
		case orb.Ring:
			line(g)
		case orb.Polygon:
			for _, r := range g {
				line(r)
			}
		}
	}
}

func (m *Map) drawCircles(c *canvas, fc *geojson.FeatureCollection, l Layer) {
	if fc == nil {
		return
	}
	glyph := l.Paint.Glyph
	if glyph == 0 {
		glyph = '●'
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil || (l.Filter != nil && !l.Filter(f)) {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Point:
			mx, my := m.Project(g)
			c.setGlyph(mx, my, glyph, l.Paint.Color)
		case orb.MultiPoint:
			for _, p := range g {
				mx, my := m.Project(p)
				c.setGlyph(mx, my, glyph, l.Paint.Color)
			}
		}
	}
}
