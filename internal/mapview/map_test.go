package mapview

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geoSource(fc *geojson.FeatureCollection) Source {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	return Source{Kind: SourceGeoJSON, Data: fc}
}

func TestOnLoad_RunsOnFirstSize(t *testing.T) {
	m := New()
	calls := 0
	m.OnLoad(func() { calls++ })
	assert.False(t, m.Loaded())

	m.SetSize(0, 10)
	assert.Zero(t, calls)
	m.SetSize(40, 10)
	assert.Equal(t, 1, calls)
	m.SetSize(50, 12)
	assert.Equal(t, 1, calls)

	m.OnLoad(func() { calls++ })
	assert.Equal(t, 2, calls)
}

func TestSourcesAndLayers(t *testing.T) {
	m := New()
	require.NoError(t, m.AddSource("roads", geoSource(nil)))
	assert.ErrorIs(t, m.AddSource("roads", geoSource(nil)), ErrSourceExists)
	assert.ErrorIs(t, m.AddLayer(Layer{ID: "l", Source: "nope"}), ErrNoSource)

	require.NoError(t, m.AddLayer(Layer{ID: "roads-line", Kind: LayerLine, Source: "roads"}))
	assert.ErrorIs(t, m.AddLayer(Layer{ID: "roads-line", Source: "roads"}), ErrLayerExists)
	assert.ErrorIs(t, m.RemoveSource("roads"), ErrSourceInUse)

	visible, ok := m.ToggleLayer("roads-line")
	assert.True(t, ok)
	assert.False(t, visible)

	require.NoError(t, m.RemoveLayer("roads-line"))
	require.NoError(t, m.RemoveSource("roads"))
	assert.ErrorIs(t, m.RemoveLayer("roads-line"), ErrNoLayer)
}

func TestSetData(t *testing.T) {
	m := New()
	require.NoError(t, m.AddSource("tiles", Source{Kind: SourceTiles}))
	require.NoError(t, m.AddSource("pts", geoSource(nil)))

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 2}))
	require.NoError(t, m.SetData("pts", fc))
	got, ok := m.Data("pts")
	require.True(t, ok)
	assert.Len(t, got.Features, 1)

	assert.ErrorIs(t, m.SetData("tiles", fc), ErrNotGeoJSON)
	assert.ErrorIs(t, m.SetData("missing", fc), ErrNoSource)
}

func TestRemove(t *testing.T) {
	m := New()
	require.NoError(t, m.AddSource("pts", geoSource(nil)))
	m.Remove()
	assert.True(t, m.Removed())
	assert.False(t, m.HasSource("pts"))
	assert.ErrorIs(t, m.AddSource("pts", geoSource(nil)), ErrRemoved)
	m.SetSize(10, 10)
	assert.False(t, m.Loaded())
	assert.Empty(t, m.Render())
}

func TestProjectUnproject(t *testing.T) {
	m := New()
	m.SetSize(80, 24)
	m.SetView(orb.Point{30.55, 50.45}, 14)

	x, y := m.Project(orb.Point{30.55, 50.45})
	assert.Equal(t, 80, x)
	assert.Equal(t, 48, y)

	p := m.Unproject(40, 12)
	assert.InDelta(t, 30.55, p[0], m.CellSpan())
	assert.InDelta(t, 50.45, p[1], m.CellSpan())
}

func TestFitBounds_DeferredUntilSized(t *testing.T) {
	m := New()
	b := orb.Bound{Min: orb.Point{30.5, 50.4}, Max: orb.Point{30.6, 50.5}}
	m.FitBounds(b, 1)
	assert.Zero(t, m.Zoom())

	m.SetSize(80, 24)
	assert.Greater(t, m.Zoom(), 5.0)
	assert.InDelta(t, 30.55, m.Center()[0], 1e-6)

	for _, corner := range []orb.Point{b.Min, b.Max} {
		x, y := m.Project(corner)
		assert.GreaterOrEqual(t, x, 0)
		assert.Less(t, x, 160)
		assert.GreaterOrEqual(t, y, 0)
		assert.Less(t, y, 96)
	}
}

func TestPanAndZoom(t *testing.T) {
	m := New()
	m.SetSize(20, 10)
	m.SetView(orb.Point{0, 0}, 3)
	m.Pan(5, 0)
	assert.Greater(t, m.Center()[0], 0.0)
	m.ZoomBy(100)
	assert.Equal(t, maxZoom, m.Zoom())
	m.ZoomBy(-100)
	assert.Equal(t, minZoom, m.Zoom())
}

func TestRender_LinesAndCircles(t *testing.T) {
	m := New()
	m.SetSize(20, 5)
	m.SetView(orb.Point{0, 0}, 2)

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{-20, 0}, {20, 0}}))
	require.NoError(t, m.AddSource("roads", geoSource(fc)))
	require.NoError(t, m.AddLayer(Layer{ID: "roads", Kind: LayerLine, Source: "roads", Paint: Paint{Color: lipgloss.Color("#4F46E5")}}))

	pts := geojson.NewFeatureCollection()
	pts.Append(geojson.NewFeature(orb.Point{0, 0}))
	require.NoError(t, m.AddSource("pts", geoSource(pts)))
	require.NoError(t, m.AddLayer(Layer{ID: "pts", Kind: LayerCircle, Source: "pts", Paint: Paint{Glyph: '◉'}}))

	out := m.Render()
	assert.Len(t, strings.Split(out, "\n"), 5)
	assert.Contains(t, out, "◉")
	assert.True(t, strings.ContainsAny(out, "⠁⠂⠄⡀⠈⠐⠠⢀⠉⠒⠤⣀"))

	m.ToggleLayer("pts")
	assert.NotContains(t, m.Render(), "◉")
}

func TestRender_FilterSkipsFeatures(t *testing.T) {
	m := New()
	m.SetSize(10, 4)
	m.SetView(orb.Point{0, 0}, 2)
	pts := geojson.NewFeatureCollection()
	pts.Append(geojson.NewFeature(orb.Point{0, 0}))
	require.NoError(t, m.AddSource("pts", geoSource(pts)))
	require.NoError(t, m.AddLayer(Layer{ID: "pts", Kind: LayerCircle, Source: "pts", Paint: Paint{Glyph: 'X'},
		Filter: func(*geojson.Feature) bool { return false }}))

	assert.NotContains(t, m.Render(), "X")
}

func TestRasterGrid(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1024, 512))
	for y := 0; y < 512; y++ {
		for x := 0; x < 1024; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	g := newRasterGrid(src)
	assert.Equal(t, image.Pt(256, 128), g.img.Bounds().Size())

	col, ok := g.sample(0.5, 0.5, 0.5)
	require.True(t, ok)
	assert.Equal(t, lipgloss.Color("#643219"), col)

	_, ok = g.sample(1.2, 0.5, 1)
	assert.False(t, ok)
}

func TestCanvas_Braille(t *testing.T) {
	c := newCanvas(2, 1)
	c.setPixel(0, 0, "")
	c.setPixel(1, 3, "")
	assert.Equal(t, rune(0x2800+0x01+0x80), c.cell(0, 0))
	assert.Equal(t, ' ', c.cell(1, 0))

	c.setGlyph(2, 0, '○', "")
	assert.Equal(t, '○', c.cell(1, 0))
}
