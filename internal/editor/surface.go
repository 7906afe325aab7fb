package editor

import (
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"roadedit/internal/mapview"
)

// Surface is the part of the map the engine draws itself onto.
type Surface interface {
	AddSource(id string, src mapview.Source) error
	RemoveSource(id string) error
	AddLayer(l mapview.Layer) error
	RemoveLayer(id string) error
	SetData(id string, fc *geojson.FeatureCollection) error
}

const (
	sourceLines    = "draw-lines"
	sourceVertices = "draw-vertices"
	sourceSketch   = "draw-sketch"
)

var (
	lineColor     = lipgloss.Color("#4F46E5")
	activeColor   = lipgloss.Color("#F59E0B")
	vertexColor   = lipgloss.Color("#FFFFFF")
	selectedColor = lipgloss.Color("#FF0000")
	sketchColor   = lipgloss.Color("#22D3EE")
)

func isActive(f *geojson.Feature) bool   { return f.Properties.MustBool("active", false) }
func isInactive(f *geojson.Feature) bool { return !isActive(f) }

// AddTo installs the engine's own sources and layers on s.
func (e *Engine) AddTo(s Surface) error {
	for _, id := range []string{sourceLines, sourceVertices, sourceSketch} {
		if err := s.AddSource(id, mapview.Source{Kind: mapview.SourceGeoJSON, Data: geojson.NewFeatureCollection()}); err != nil {
			return err
		}
	}
	layers := []mapview.Layer{
		{ID: "gl-draw-line", Kind: mapview.LayerLine, Source: sourceLines, Paint: mapview.Paint{Color: lineColor}, Filter: isInactive},
		{ID: "gl-draw-line-active", Kind: mapview.LayerLine, Source: sourceLines, Paint: mapview.Paint{Color: activeColor}, Filter: isActive},
		{ID: "gl-draw-sketch", Kind: mapview.LayerLine, Source: sourceSketch, Paint: mapview.Paint{Color: sketchColor}},
		{ID: "gl-draw-vertex-inactive", Kind: mapview.LayerCircle, Source: sourceVertices, Paint: mapview.Paint{Color: vertexColor, Glyph: '○'}, Filter: isInactive},
		{ID: "gl-draw-vertex-active", Kind: mapview.LayerCircle, Source: sourceVertices, Paint: mapview.Paint{Color: selectedColor, Glyph: '◉'}, Filter: isActive},
	}
	for _, l := range layers {
		if err := s.AddLayer(l); err != nil {
			return err
		}
	}
	e.surface = s
	e.render()
	return nil
}

func (e *Engine) detachSurface() {
	s := e.surface
	if s == nil {
		return
	}
	e.surface = nil
	for _, id := range []string{"gl-draw-line", "gl-draw-line-active", "gl-draw-sketch", "gl-draw-vertex-inactive", "gl-draw-vertex-active"} {
		_ = s.RemoveLayer(id)
	}
	for _, id := range []string{sourceLines, sourceVertices, sourceSketch} {
		_ = s.RemoveSource(id)
	}
}

// render pushes the engine state to its surface sources.
func (e *Engine) render() {
	if e.surface == nil {
		return
	}
	lines := geojson.NewFeatureCollection()
	for _, f := range e.features {
		df := geojson.NewFeature(f.Geometry)
		df.Properties["id"] = FeatureID(f)
		df.Properties["active"] = slices.Contains(e.selected, FeatureID(f))
		lines.Append(df)
	}
	vertices := geojson.NewFeatureCollection()
	if ls, ok := e.directLine(); ok {
		for i, p := range ls {
			vf := geojson.NewFeature(p)
			vf.Properties["meta"] = "vertex"
			vf.Properties["active"] = slices.Contains(e.coords, i)
			vertices.Append(vf)
		}
	}
	sketch := geojson.NewFeatureCollection()
	if e.drawing != nil {
		ls := e.drawing.Geometry.(orb.LineString)
		sketch.Append(geojson.NewFeature(ls))
		for _, p := range ls {
			vf := geojson.NewFeature(p)
			vf.Properties["meta"] = "vertex"
			vertices.Append(vf)
		}
	}
	_ = e.surface.SetData(sourceLines, lines)
	_ = e.surface.SetData(sourceVertices, vertices)
	_ = e.surface.SetData(sourceSketch, sketch)
}
