package session

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadedit/internal/backend"
	"roadedit/internal/editor"
	"roadedit/internal/geom"
	"roadedit/internal/mapview"
)

var kyivBBox = geom.BBox{MinX: 30.50, MinY: 50.40, MaxX: 30.60, MaxY: 50.50}

func loadResult(withImagery bool) *LoadResult {
	res := &LoadResult{TaskID: "t1", Features: roads(), BBox: kyivBBox, HasBBox: true, BBoxKnown: true}
	if withImagery {
		res.Background = testScene()
	}
	return res
}

func TestSession_BeginIsExactlyOnce(t *testing.T) {
	s := New(newFakeEngine(), newFakeSurface())
	assert.True(t, s.Begin("t1"))
	assert.False(t, s.Begin("t1"))
	assert.False(t, s.Begin("t2"))
	assert.Equal(t, "t1", s.TaskID())
	assert.Equal(t, StateLoading, s.State())
}

func TestSession_ApplyWithoutImagery(t *testing.T) {
	eng, surf := newFakeEngine(), newFakeSurface()
	s := New(eng, surf)
	s.Begin("t1")
	require.NoError(t, s.Apply(loadResult(false), nil))

	assert.True(t, surf.hasLayer(LayerTiles))
	assert.True(t, surf.hasLayer(LayerHelper))
	assert.False(t, surf.hasLayer(LayerImagery))
	assert.NotContains(t, surf.sources, SourceImagery)
	assert.True(t, eng.attached)
	assert.Equal(t, orb.Point{30.55, 50.45}, roundPoint(surf.center))
	assert.Equal(t, DefaultInitialZoom, surf.zoom)
}

func TestSession_ApplyWithImagery(t *testing.T) {
	surf := newFakeSurface()
	s := New(newFakeEngine(), surf)
	s.Begin("t1")
	require.NoError(t, s.Apply(loadResult(true), nil))

	require.True(t, surf.hasLayer(LayerImagery))
	src := surf.sources[SourceImagery]
	assert.Equal(t, mapview.SourceImage, src.Kind)
	assert.Equal(t, [4]orb.Point{{30.50, 50.50}, {30.60, 50.50}, {30.60, 50.40}, {30.50, 50.40}}, src.Coordinates)
	assert.Equal(t, []string{LayerTiles, LayerImagery, LayerHelper}, surf.layers)
}

func TestSession_OnLoadPopulatesEngineAndPoints(t *testing.T) {
	eng, surf := newFakeEngine(), newFakeSurface()
	s := New(eng, surf)
	s.Begin("t1")
	require.NoError(t, s.Apply(loadResult(false), nil))
	assert.Equal(t, StateLoading, s.State())
	assert.Empty(t, eng.features.Features)

	surf.load()
	assert.Equal(t, StateReady, s.State())
	assert.Len(t, eng.features.Features, 2)
	assert.Len(t, surf.data[SourceHelper].Features, 5)
	assert.True(t, surf.hasLayer(LayerBBox))
	require.NotNil(t, surf.fitted)
	assert.Equal(t, kyivBBox.Bound(), *surf.fitted)
}

func TestSession_ApplyError(t *testing.T) {
	surf := newFakeSurface()
	s := New(newFakeEngine(), surf)
	s.Begin("t1")
	loadErr := errors.New("boom")

	assert.ErrorIs(t, s.Apply(nil, loadErr), loadErr)
	assert.Equal(t, StateFailed, s.State())
	assert.ErrorIs(t, s.Err(), loadErr)
	assert.Empty(t, surf.layers)
}

func TestSession_ApplyWithoutBegin(t *testing.T) {
	s := New(newFakeEngine(), newFakeSurface())
	assert.ErrorIs(t, s.Apply(loadResult(false), nil), ErrNotLoaded)
}

func TestSession_ClosedDropsLateResults(t *testing.T) {
	eng, surf := newFakeEngine(), newFakeSurface()
	s := New(eng, surf)
	s.Begin("t1")
	s.Close()

	assert.ErrorIs(t, s.Apply(loadResult(false), nil), ErrClosed)
	assert.False(t, s.Alive())
	assert.True(t, eng.closed)
	assert.True(t, surf.removed)
	assert.Error(t, s.Context().Err())
	assert.False(t, s.Begin("t1"))
}

func TestSession_CloseBeforeSurfaceLoads(t *testing.T) {
	eng, surf := newFakeEngine(), newFakeSurface()
	s := New(eng, surf)
	s.Begin("t1")
	require.NoError(t, s.Apply(loadResult(false), nil))
	s.Close()

	surf.load()
	assert.Empty(t, eng.features.Features)
	assert.Equal(t, StateClosed, s.State())
}

func TestSession_EngineEventsRefreshPoints(t *testing.T) {
	eng, surf := newFakeEngine(), newFakeSurface()
	s := New(eng, surf)
	s.Begin("t1")
	require.NoError(t, s.Apply(loadResult(false), nil))
	surf.load()

	before := surf.setData
	eng.emit(editor.Event{Type: editor.EventUpdate})
	assert.Equal(t, before+1, surf.setData)

	eng.emit(editor.Event{Type: editor.EventSelectionChange})
	assert.Equal(t, before+1, surf.setData)
}

func TestSession_ToolsNoopUntilReady(t *testing.T) {
	eng, surf := newFakeEngine(), newFakeSurface()
	s := New(eng, surf)
	s.Begin("t1")
	require.NoError(t, s.Apply(loadResult(false), nil))

	_, _ = s.Tools().Activate(ToolDrawLine)
	assert.Empty(t, eng.modes)

	surf.load()
	_, _ = s.Tools().Activate(ToolDrawLine)
	assert.Equal(t, []editor.Mode{editor.ModeDrawLineString}, eng.modes)
}

func TestSession_PayloadCarriesKnownBBoxOnly(t *testing.T) {
	eng, surf := newFakeEngine(), newFakeSurface()
	s := New(eng, surf)
	s.Begin("t1")
	require.NoError(t, s.Apply(loadResult(false), nil))
	surf.load()

	data, err := s.Payload()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"bbox": [`)

	eng2, surf2 := newFakeEngine(), newFakeSurface()
	s2 := New(eng2, surf2)
	s2.Begin("t2")
	res := loadResult(false)
	res.BBoxKnown = false
	require.NoError(t, s2.Apply(res, nil))
	surf2.load()

	data, err = s2.Payload()
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"bbox"`)
}

func TestSession_PayloadBeforeLoad(t *testing.T) {
	s := New(newFakeEngine(), newFakeSurface())
	_, err := s.Payload()
	assert.ErrorIs(t, err, ErrNotLoaded)

	s.Close()
	_, err = s.Payload()
	assert.ErrorIs(t, err, ErrClosed)
}

// End to end with the shipped engine and map surface.
func TestSession_WithEditorAndMap(t *testing.T) {
	eng := editor.New()
	m := mapview.New()
	tasks := &fakeTasks{task: &backend.Task{ID: "t1", BBox: kyivBBox.Slice(), Features: roads()}}
	img := &fakeImagery{err: errImageryDown}

	s := New(eng, m)
	require.True(t, s.Begin("t1"))
	res, err := NewLoader(tasks, img).Fetch(context.Background(), "t1")
	require.NoError(t, s.Apply(res, err))

	m.SetSize(80, 24)
	require.Equal(t, StateReady, s.State())
	assert.False(t, m.HasLayer(LayerImagery))
	assert.True(t, m.HasLayer(LayerTiles))
	assert.True(t, m.HasLayer(LayerHelper))

	pts, _ := m.Data(SourceHelper)
	assert.Len(t, pts.Features, 5)

	_, err = s.Tools().Activate(ToolDrawLine)
	require.NoError(t, err)
	eng.Click(orb.Point{30.56, 50.46}, 1e-6)
	eng.Click(orb.Point{30.57, 50.47}, 1e-6)
	eng.Finish()
	assert.Equal(t, ToolEdit, s.Tools().State())

	pts, _ = m.Data(SourceHelper)
	assert.Len(t, pts.Features, 7)

	eng.Select("a")
	out, err := s.Tools().Activate(ToolDelete)
	require.NoError(t, err)
	require.Equal(t, ActionConfirmLines, out.Action)
	out = s.Tools().Resolve(true)
	assert.True(t, out.Deleted)

	pts, _ = m.Data(SourceHelper)
	assert.Len(t, pts.Features, 5)
	assert.Len(t, eng.GetAll().Features, 2)

	s.Close()
	assert.True(t, m.Removed())
}

func TestSession_HelperPointsFollowDrag(t *testing.T) {
	eng := editor.New()
	m := mapview.New()
	s := New(eng, m)
	require.True(t, s.Begin("t1"))
	require.NoError(t, s.Apply(loadResult(false), nil))
	m.SetSize(80, 24)
	require.Equal(t, StateReady, s.State())

	require.NoError(t, eng.ChangeMode(editor.ModeDirectSelect, editor.ModeOptions{FeatureID: "b"}))
	require.True(t, eng.Press(orb.Point{30.54, 50.44}, 1e-6))
	eng.Drag(orb.Point{30.58, 50.48})
	require.True(t, eng.Dragging())

	pts, ok := m.Data(SourceHelper)
	require.True(t, ok)
	assert.Equal(t, ProjectVertices(eng.GetAll()), pts)
	assert.Equal(t, orb.Point{30.58, 50.48}, pts.Features[3].Geometry)

	eng.Release()
	pts, _ = m.Data(SourceHelper)
	assert.Equal(t, ProjectVertices(eng.GetAll()), pts)
}

func TestSession_ImportKeepsExistingRoads(t *testing.T) {
	eng := editor.New()
	s := New(eng, mapview.New())
	require.True(t, s.Begin("t1"))
	require.NoError(t, s.Apply(loadResult(false), nil))

	fc := geojson.NewFeatureCollection()
	dup := geojson.NewFeature(orb.LineString{{30.1, 50.1}, {30.2, 50.2}})
	dup.ID = "a"
	fc.Append(dup)
	fresh := geojson.NewFeature(orb.LineString{{30.3, 50.3}, {30.4, 50.4}})
	fresh.ID = "c"
	fc.Append(fresh)
	fc.Append(geojson.NewFeature(orb.MultiLineString{
		{{30.6, 50.6}, {30.7, 50.7}},
		{{30.8, 50.8}, {30.9, 50.9}},
	}))
	fc.Append(geojson.NewFeature(orb.Point{30.5, 50.5}))
	fc.Append(geojson.NewFeature(orb.Polygon{{{30, 50}, {31, 50}, {31, 51}, {30, 50}}}))

	res, err := s.Import(fc)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Reassigned)
	require.Len(t, res.IDs, 4)
	assert.NotEqual(t, "a", res.IDs[0])
	assert.Equal(t, "c", res.IDs[1])
	assert.Equal(t, "a", dup.ID)

	all := eng.GetAll()
	require.Len(t, all.Features, 6)
	orig, ok := eng.Get("a")
	require.True(t, ok)
	assert.Equal(t, orb.LineString{{30.51, 50.41}, {30.52, 50.42}}, orig.Geometry)
	for _, f := range all.Features {
		assert.IsType(t, orb.LineString{}, f.Geometry)
	}
}

func TestSession_ImportNotReady(t *testing.T) {
	s := New(newFakeEngine(), newFakeSurface())
	s.Begin("t1")
	_, err := s.Import(roads())
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func roundPoint(p orb.Point) orb.Point {
	r := func(v float64) float64 { return float64(int64(v*1e6+0.5)) / 1e6 }
	return orb.Point{r(p[0]), r(p[1])}
}
