package mapview

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

var (
	ErrSourceExists = errors.New("source already exists")
	ErrNoSource     = errors.New("source not found")
	ErrLayerExists  = errors.New("layer already exists")
	ErrNoLayer      = errors.New("layer not found")
	ErrSourceInUse  = errors.New("source is used by a layer")
	ErrNotGeoJSON   = errors.New("source is not a geojson source")
	ErrRemoved      = errors.New("map removed")
)

type SourceKind int

const (
	SourceTiles SourceKind = iota
	SourceImage
	SourceGeoJSON
)

// Source is the data behind one or more layers.
type Source struct {
	Kind SourceKind

	// SourceTiles
	Tiles    []string
	TileSize int

	// SourceImage: Coordinates are top-left, top-right, bottom-right, bottom-left.
	URL         string
	Image       image.Image
	Coordinates [4]orb.Point

	// SourceGeoJSON
	Data *geojson.FeatureCollection
}

type LayerKind int

const (
	LayerRaster LayerKind = iota
	LayerLine
	LayerCircle
)

type Paint struct {
	Color   lipgloss.Color
	Opacity float64
	Glyph   rune
}

type Layer struct {
	ID     string
	Kind   LayerKind
	Source string
	Paint  Paint
	Filter func(*geojson.Feature) bool
	Hidden bool
}

const (
	tileSize    = 256.0
	earthRadius = 6378137.0
	minZoom     = 0.0
	maxZoom     = 22.0
)

// Map is a terminal rendering surface: named sources, ordered layers and a
// Web-Mercator viewport measured in braille micro-pixels.
type Map struct {
	w, h int

	center orb.Point
	zoom   float64

	sources map[string]*Source
	layers  []Layer
	raster  map[string]*rasterGrid

	loaded  bool
	onLoad  []func()
	removed bool

	pendingFit *orb.Bound
	pendingPad int
}

func New() *Map {
	return &Map{
		zoom:    minZoom,
		sources: map[string]*Source{},
		raster:  map[string]*rasterGrid{},
	}
}

// SetSize sets the viewport size in terminal cells. The first non-empty
// size marks the map as loaded.
func (m *Map) SetSize(w, h int) {
	if w <= 0 || h <= 0 || m.removed {
		return
	}
	m.w, m.h = w, h
	if m.pendingFit != nil {
		b, pad := *m.pendingFit, m.pendingPad
		m.pendingFit = nil
		m.FitBounds(b, pad)
	}
	if !m.loaded {
		m.loaded = true
		fns := m.onLoad
		m.onLoad = nil
		for _, fn := range fns {
			fn()
		}
	}
}

func (m *Map) Size() (int, int) { return m.w, m.h }

// OnLoad registers fn to run once the map has a size. If the map is already
// loaded fn runs immediately.
func (m *Map) OnLoad(fn func()) {
	if m.removed {
		return
	}
	if m.loaded {
		fn()
		return
	}
	m.onLoad = append(m.onLoad, fn)
}

func (m *Map) Loaded() bool { return m.loaded && !m.removed }

// Remove releases every source and layer; the map is unusable afterwards.
func (m *Map) Remove() {
	m.removed = true
	m.sources = map[string]*Source{}
	m.raster = map[string]*rasterGrid{}
	m.layers = nil
	m.onLoad = nil
}

func (m *Map) Removed() bool { return m.removed }

func (m *Map) SetView(center orb.Point, zoom float64) {
	m.center = center
	m.zoom = clampZoom(zoom)
}

func (m *Map) Center() orb.Point { return m.center }
func (m *Map) Zoom() float64     { return m.zoom }

func (m *Map) ZoomBy(delta float64) {
	m.zoom = clampZoom(m.zoom + delta)
}

// Pan moves the view by whole cells.
func (m *Map) Pan(dx, dy int) {
	px, py := m.worldPixel(m.center)
	m.center = m.fromWorldPixel(px+float64(dx*2), py+float64(dy*4))
}

// FitBounds chooses the center and zoom that show b with padding cells on
// every side. Before the first SetSize the fit is deferred.
func (m *Map) FitBounds(b orb.Bound, padding int) {
	if m.w == 0 || m.h == 0 {
		m.pendingFit = &b
		m.pendingPad = padding
		return
	}
	minM := project.WGS84.ToMercator(b.Min)
	maxM := project.WGS84.ToMercator(b.Max)
	m.center = project.Mercator.ToWGS84(orb.Point{(minM[0] + maxM[0]) / 2, (minM[1] + maxM[1]) / 2})

	world := 2 * math.Pi * earthRadius
	spanX := (maxM[0] - minM[0]) / world * tileSize
	spanY := (maxM[1] - minM[1]) / world * tileSize
	availX := float64(max(1, (m.w-2*padding)*2))
	availY := float64(max(1, (m.h-2*padding)*4))

	zoom := maxZoom
	if spanX > 0 {
		zoom = math.Min(zoom, math.Log2(availX/spanX))
	}
	if spanY > 0 {
		zoom = math.Min(zoom, math.Log2(availY/spanY))
	}
	if spanX == 0 && spanY == 0 {
		zoom = m.zoom
	}
	m.zoom = clampZoom(zoom)
}

func (m *Map) AddSource(id string, src Source) error {
	if m.removed {
		return ErrRemoved
	}
	if _, ok := m.sources[id]; ok {
		return fmt.Errorf("%w: %s", ErrSourceExists, id)
	}
	s := src
	m.sources[id] = &s
	if s.Kind == SourceImage && s.Image != nil {
		m.raster[id] = newRasterGrid(s.Image)
	}
	return nil
}

func (m *Map) RemoveSource(id string) error {
	if _, ok := m.sources[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSource, id)
	}
	for _, l := range m.layers {
		if l.Source == id {
			return fmt.Errorf("%w: %s by %s", ErrSourceInUse, id, l.ID)
		}
	}
	delete(m.sources, id)
	delete(m.raster, id)
	return nil
}

func (m *Map) HasSource(id string) bool {
	_, ok := m.sources[id]
	return ok
}

// SetData replaces the data of a GeoJSON source wholesale.
func (m *Map) SetData(id string, fc *geojson.FeatureCollection) error {
	s, ok := m.sources[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSource, id)
	}
	if s.Kind != SourceGeoJSON {
		return fmt.Errorf("%w: %s", ErrNotGeoJSON, id)
	}
	s.Data = fc
	return nil
}

// Data returns the current data of a GeoJSON source.
func (m *Map) Data(id string) (*geojson.FeatureCollection, bool) {
	s, ok := m.sources[id]
	if !ok || s.Kind != SourceGeoJSON {
		return nil, false
	}
	return s.Data, true
}

func (m *Map) AddLayer(l Layer) error {
	if m.removed {
		return ErrRemoved
	}
	if m.HasLayer(l.ID) {
		return fmt.Errorf("%w: %s", ErrLayerExists, l.ID)
	}
	if !m.HasSource(l.Source) {
		return fmt.Errorf("%w: %s", ErrNoSource, l.Source)
	}
	m.layers = append(m.layers, l)
	return nil
}

func (m *Map) RemoveLayer(id string) error {
	for i, l := range m.layers {
		if l.ID == id {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoLayer, id)
}

func (m *Map) HasLayer(id string) bool {
	for _, l := range m.layers {
		if l.ID == id {
			return true
		}
	}
	return false
}

// LayerIDs returns layer ids in draw order.
func (m *Map) LayerIDs() []string {
	ids := make([]string, 0, len(m.layers))
	for _, l := range m.layers {
		ids = append(ids, l.ID)
	}
	return ids
}

// ToggleLayer flips layer visibility and reports the new state.
func (m *Map) ToggleLayer(id string) (visible bool, ok bool) {
	for i := range m.layers {
		if m.layers[i].ID == id {
			m.layers[i].Hidden = !m.layers[i].Hidden
			return !m.layers[i].Hidden, true
		}
	}
	return false, false
}

// worldPixel maps lon/lat to global pixel coordinates at the current zoom.
func (m *Map) worldPixel(p orb.Point) (float64, float64) {
	merc := project.WGS84.ToMercator(p)
	world := 2 * math.Pi * earthRadius
	scale := tileSize * math.Exp2(m.zoom)
	px := (merc[0] + world/2) / world * scale
	py := (world/2 - merc[1]) / world * scale
	return px, py
}

func (m *Map) fromWorldPixel(px, py float64) orb.Point {
	world := 2 * math.Pi * earthRadius
	scale := tileSize * math.Exp2(m.zoom)
	merc := orb.Point{px/scale*world - world/2, world/2 - py/scale*world}
	return project.Mercator.ToWGS84(merc)
}

// Project maps lon/lat to micro-pixel coordinates of the viewport.
func (m *Map) Project(p orb.Point) (int, int) {
	px, py := m.worldPixel(p)
	cx, cy := m.worldPixel(m.center)
	sx := px - cx + float64(m.w*2)/2
	sy := py - cy + float64(m.h*4)/2
	return int(math.Floor(sx)), int(math.Floor(sy))
}

// Unproject maps the center of cell (cx, cy) back to lon/lat.
func (m *Map) Unproject(cx, cy int) orb.Point {
	ox, oy := m.worldPixel(m.center)
	px := ox + float64(cx*2+1) - float64(m.w*2)/2
	py := oy + float64(cy*4+2) - float64(m.h*4)/2
	return m.fromWorldPixel(px, py)
}

// CellSpan is the longitude width of one cell at the current view.
func (m *Map) CellSpan() float64 {
	return 360.0 / (tileSize * math.Exp2(m.zoom)) * 2
}

func clampZoom(z float64) float64 {
	return math.Max(minZoom, math.Min(maxZoom, z))
}
