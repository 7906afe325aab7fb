package session

import (
	"context"
	"errors"
	"image"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"roadedit/internal/backend"
	"roadedit/internal/editor"
	"roadedit/internal/geom"
	"roadedit/internal/imagery"
	"roadedit/internal/mapview"
)

type fakeSurface struct {
	sources map[string]mapview.Source
	layers  []string
	data    map[string]*geojson.FeatureCollection
	setData int

	center  orb.Point
	zoom    float64
	fitted  *orb.Bound
	onLoad  []func()
	removed bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{sources: map[string]mapview.Source{}, data: map[string]*geojson.FeatureCollection{}}
}

func (f *fakeSurface) AddSource(id string, src mapview.Source) error {
	if _, ok := f.sources[id]; ok {
		return mapview.ErrSourceExists
	}
	f.sources[id] = src
	f.data[id] = src.Data
	return nil
}

func (f *fakeSurface) RemoveSource(id string) error {
	delete(f.sources, id)
	return nil
}

func (f *fakeSurface) AddLayer(l mapview.Layer) error {
	f.layers = append(f.layers, l.ID)
	return nil
}

func (f *fakeSurface) RemoveLayer(id string) error { return nil }

func (f *fakeSurface) SetData(id string, fc *geojson.FeatureCollection) error {
	if _, ok := f.sources[id]; !ok {
		return mapview.ErrNoSource
	}
	f.data[id] = fc
	f.setData++
	return nil
}

func (f *fakeSurface) SetView(center orb.Point, zoom float64) { f.center, f.zoom = center, zoom }
func (f *fakeSurface) FitBounds(b orb.Bound, padding int)     { f.fitted = &b }
func (f *fakeSurface) OnLoad(fn func())                       { f.onLoad = append(f.onLoad, fn) }
func (f *fakeSurface) Remove()                                { f.removed = true }

func (f *fakeSurface) load() {
	fns := f.onLoad
	f.onLoad = nil
	for _, fn := range fns {
		fn()
	}
}

func (f *fakeSurface) hasLayer(id string) bool {
	for _, l := range f.layers {
		if l == id {
			return true
		}
	}
	return false
}

type fakeEngine struct {
	features  *geojson.FeatureCollection
	selected  []string
	points    *geojson.FeatureCollection
	modes     []editor.Mode
	modeOpts  []editor.ModeOptions
	trashed   int
	listeners []editor.Listener
	attached  bool
	closed    bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{features: geojson.NewFeatureCollection(), points: geojson.NewFeatureCollection()}
}

func (f *fakeEngine) GetAll() *geojson.FeatureCollection { return f.features }

func (f *fakeEngine) Add(fc *geojson.FeatureCollection) []string {
	var ids []string
	for _, ft := range fc.Features {
		f.features.Append(ft)
		ids = append(ids, editor.FeatureID(ft))
	}
	f.emit(editor.Event{Type: editor.EventCreate, Features: fc.Features})
	return ids
}

func (f *fakeEngine) Delete(ids ...string) {}

func (f *fakeEngine) ChangeMode(mode editor.Mode, opts editor.ModeOptions) error {
	f.modes = append(f.modes, mode)
	f.modeOpts = append(f.modeOpts, opts)
	return nil
}

func (f *fakeEngine) SelectedIDs() []string                      { return f.selected }
func (f *fakeEngine) SelectedPoints() *geojson.FeatureCollection { return f.points }
func (f *fakeEngine) Trash()                                     { f.trashed++ }
func (f *fakeEngine) On(fn editor.Listener)                      { f.listeners = append(f.listeners, fn) }
func (f *fakeEngine) AddTo(s editor.Surface) error               { f.attached = true; return nil }
func (f *fakeEngine) Close()                                     { f.closed = true }

func (f *fakeEngine) emit(ev editor.Event) {
	for _, fn := range f.listeners {
		fn(ev)
	}
}

func (f *fakeEngine) selectPoints(n int) {
	f.points = geojson.NewFeatureCollection()
	for i := 0; i < n; i++ {
		f.points.Append(geojson.NewFeature(orb.Point{float64(i), 0}))
	}
}

type fakeTasks struct {
	task *backend.Task
	err  error
}

func (f *fakeTasks) FetchTask(ctx context.Context, taskID string) (*backend.Task, error) {
	return f.task, f.err
}

type fakeImagery struct {
	scene *imagery.Scene
	err   error
	calls int
}

func (f *fakeImagery) Background(ctx context.Context, b geom.BBox) (*imagery.Scene, error) {
	f.calls++
	return f.scene, f.err
}

var errImageryDown = errors.New("imagery down")

func testScene() *imagery.Scene {
	return &imagery.Scene{URL: "http://img/thumb.png", Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}
}

func roads() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	a := geojson.NewFeature(orb.LineString{{30.51, 50.41}, {30.52, 50.42}})
	a.ID = "a"
	b := geojson.NewFeature(orb.LineString{{30.53, 50.43}, {30.54, 50.44}, {30.55, 50.45}})
	b.ID = "b"
	fc.Append(a)
	fc.Append(b)
	return fc
}

type fakeSaver struct {
	body []byte
	err  error
}

func (f *fakeSaver) SaveGeometry(ctx context.Context, taskID string, body []byte) error {
	f.body = append([]byte(nil), body...)
	return f.err
}

func geojsonSource() mapview.Source {
	return mapview.Source{Kind: mapview.SourceGeoJSON, Data: geojson.NewFeatureCollection()}
}
