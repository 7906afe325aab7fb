package editor

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Mode is the engine's internal editing state.
type Mode string

const (
	ModeSimpleSelect   Mode = "simple_select"
	ModeDirectSelect   Mode = "direct_select"
	ModeDrawLineString Mode = "draw_line_string"
)

// ModeOptions scopes a mode; FeatureID is required by direct_select.
type ModeOptions struct {
	FeatureID string
}

type EventType string

const (
	EventCreate          EventType = "create"
	EventDelete          EventType = "delete"
	EventUpdate          EventType = "update"
	EventSelectionChange EventType = "selectionchange"
	EventModeChange      EventType = "modechange"
)

const (
	ActionChangeCoordinates = "change_coordinates"
	ActionDrag              = "drag"
)

// Event is emitted synchronously after the mutation it describes.
type Event struct {
	Type     EventType
	Features []*geojson.Feature
	Points   []*geojson.Feature
	Action   string
	Mode     Mode
}

type Listener func(Event)

var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrInvalidMode    = errors.New("invalid mode")
	ErrDetached       = errors.New("engine detached")
)

// Engine is an in-memory vector editor for line features. It owns the
// geometry, the selection and the mode, and reports every change to its
// listeners.
type Engine struct {
	features []*geojson.Feature

	mode     Mode
	directID string
	selected []string
	coords   []int // selected vertex indices of directID

	drawing *geojson.Feature
	drag    int
	dragged bool

	listeners []Listener
	surface   Surface
	detached  bool

	newID func() string
}

type Option func(*Engine)

// WithIDGenerator replaces the UUID generator used for new features.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		mode:  ModeSimpleSelect,
		drag:  -1,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// On registers a listener. Listeners run in registration order.
func (e *Engine) On(fn Listener) {
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) emit(ev Event) {
	if e.detached {
		return
	}
	e.render()
	for _, fn := range e.listeners {
		fn(ev)
	}
}

func (e *Engine) Mode() Mode { return e.mode }

// GetAll returns a copy of every committed feature, in insertion order.
func (e *Engine) GetAll() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range e.features {
		fc.Append(cloneFeature(f))
	}
	return fc
}

// Get returns a copy of a single feature.
func (e *Engine) Get(id string) (*geojson.Feature, bool) {
	if i := e.indexOf(id); i >= 0 {
		return cloneFeature(e.features[i]), true
	}
	return nil, false
}

// Add inserts or replaces features and returns their ids. Features without
// an id get a new one.
func (e *Engine) Add(fc *geojson.FeatureCollection) []string {
	if fc == nil || e.detached {
		return nil
	}
	var (
		ids   []string
		added []*geojson.Feature
	)
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		nf := cloneFeature(f)
		id := FeatureID(nf)
		if id == "" {
			id = e.newID()
		}
		nf.ID = id
		if i := e.indexOf(id); i >= 0 {
			e.features[i] = nf
		} else {
			e.features = append(e.features, nf)
		}
		ids = append(ids, id)
		added = append(added, cloneFeature(nf))
	}
	if len(added) > 0 {
		e.emit(Event{Type: EventCreate, Features: added, Action: "add"})
	}
	return ids
}

// Delete removes features by id; unknown ids are ignored.
func (e *Engine) Delete(ids ...string) {
	var removed []*geojson.Feature
	for _, id := range ids {
		if i := e.indexOf(id); i >= 0 {
			removed = append(removed, e.features[i])
			e.features = slices.Delete(e.features, i, i+1)
		}
	}
	if len(removed) == 0 {
		return
	}
	selChanged := e.dropSelection(ids)
	modeChanged := false
	if e.mode == ModeDirectSelect && e.indexOf(e.directID) < 0 {
		e.mode, e.directID, e.coords = ModeSimpleSelect, "", nil
		modeChanged = true
	}
	e.emit(Event{Type: EventDelete, Features: removed})
	if modeChanged {
		e.emit(Event{Type: EventModeChange, Mode: e.mode})
	}
	if selChanged {
		e.emitSelection()
	}
}

// ChangeMode switches the editing mode. Leaving draw mode commits a valid
// in-progress line and discards an invalid one.
func (e *Engine) ChangeMode(mode Mode, opts ModeOptions) error {
	if e.detached {
		return ErrDetached
	}
	switch mode {
	case ModeSimpleSelect, ModeDrawLineString:
	case ModeDirectSelect:
		if e.indexOf(opts.FeatureID) < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownFeature, opts.FeatureID)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	prev := e.mode
	if prev == ModeDrawLineString && mode != ModeDrawLineString {
		e.commitDrawing()
	}
	hadSelection := len(e.selected) > 0 || len(e.coords) > 0
	e.mode = mode
	e.drag, e.dragged = -1, false
	switch mode {
	case ModeSimpleSelect:
		e.directID, e.coords = "", nil
	case ModeDirectSelect:
		e.directID, e.coords = opts.FeatureID, nil
		e.selected = []string{opts.FeatureID}
	case ModeDrawLineString:
		e.directID, e.coords, e.selected = "", nil, nil
		e.drawing = nil
	}
	if prev != mode {
		e.emit(Event{Type: EventModeChange, Mode: mode})
	} else {
		e.render()
	}
	switch {
	case mode == ModeDrawLineString && hadSelection:
		e.emitSelection()
	case prev == ModeDrawLineString && mode != prev:
		e.emitSelection()
	}
	return nil
}

// SelectedIDs returns the ids of the selected features.
func (e *Engine) SelectedIDs() []string {
	return slices.Clone(e.selected)
}

// SelectedPoints returns the selected vertices as point features.
func (e *Engine) SelectedPoints() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	i := e.indexOf(e.directID)
	if e.mode != ModeDirectSelect || i < 0 {
		return fc
	}
	ls, ok := e.features[i].Geometry.(orb.LineString)
	if !ok {
		return fc
	}
	for _, idx := range e.coords {
		if idx < 0 || idx >= len(ls) {
			continue
		}
		pf := geojson.NewFeature(ls[idx])
		pf.Properties["parent"] = e.directID
		pf.Properties["coord_path"] = idx
		fc.Append(pf)
	}
	return fc
}

// Select replaces the feature selection while in simple_select.
func (e *Engine) Select(ids ...string) {
	if e.mode != ModeSimpleSelect {
		return
	}
	var next []string
	for _, id := range ids {
		if e.indexOf(id) >= 0 && !slices.Contains(next, id) {
			next = append(next, id)
		}
	}
	if slices.Equal(next, e.selected) {
		return
	}
	e.selected = next
	e.emitSelection()
}

// SelectVertex replaces the vertex selection while in direct_select.
func (e *Engine) SelectVertex(idx int) {
	ls, ok := e.directLine()
	if !ok || idx < 0 || idx >= len(ls) {
		return
	}
	e.coords = []int{idx}
	e.emitSelection()
}

// Trash deletes the selected vertices if there are any, otherwise the
// selected features. In draw mode it abandons the line being drawn.
func (e *Engine) Trash() {
	if e.detached {
		return
	}
	switch {
	case e.mode == ModeDrawLineString:
		e.Cancel()
	case e.mode == ModeDirectSelect && len(e.coords) > 0:
		e.trashVertices()
	case len(e.selected) > 0:
		e.Delete(slices.Clone(e.selected)...)
	}
}

func (e *Engine) trashVertices() {
	i := e.indexOf(e.directID)
	ls, ok := e.features[i].Geometry.(orb.LineString)
	if !ok {
		return
	}
	idx := slices.Clone(e.coords)
	slices.Sort(idx)
	next := make(orb.LineString, 0, len(ls))
	for j, p := range ls {
		if _, found := slices.BinarySearch(idx, j); !found {
			next = append(next, p)
		}
	}
	e.coords = nil
	if len(next) < 2 {
		e.Delete(e.directID)
		return
	}
	e.features[i].Geometry = next
	e.emit(Event{Type: EventUpdate, Features: []*geojson.Feature{cloneFeature(e.features[i])}, Action: ActionChangeCoordinates})
	e.emitSelection()
}

func (e *Engine) emitSelection() {
	var feats []*geojson.Feature
	for _, id := range e.selected {
		if i := e.indexOf(id); i >= 0 {
			feats = append(feats, cloneFeature(e.features[i]))
		}
	}
	e.emit(Event{Type: EventSelectionChange, Features: feats, Points: e.SelectedPoints().Features})
}

// dropSelection removes ids from the selection and reports whether it changed.
func (e *Engine) dropSelection(ids []string) bool {
	before := len(e.selected)
	e.selected = slices.DeleteFunc(e.selected, func(id string) bool {
		return slices.Contains(ids, id)
	})
	if slices.Contains(ids, e.directID) {
		e.coords = nil
	}
	return len(e.selected) != before
}

func (e *Engine) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(e.features, func(f *geojson.Feature) bool {
		return FeatureID(f) == id
	})
}

func (e *Engine) directLine() (orb.LineString, bool) {
	if e.mode != ModeDirectSelect {
		return nil, false
	}
	i := e.indexOf(e.directID)
	if i < 0 {
		return nil, false
	}
	ls, ok := e.features[i].Geometry.(orb.LineString)
	return ls, ok
}

// Close detaches the engine from its surface and drops its listeners.
func (e *Engine) Close() {
	if e.detached {
		return
	}
	e.detachSurface()
	e.listeners = nil
	e.detached = true
}

// FeatureID returns a feature id as a string, or "" when unset.
func FeatureID(f *geojson.Feature) string {
	if f == nil || f.ID == nil {
		return ""
	}
	if s, ok := f.ID.(string); ok {
		return s
	}
	return fmt.Sprint(f.ID)
}

func cloneFeature(f *geojson.Feature) *geojson.Feature {
	nf := geojson.NewFeature(orb.Clone(f.Geometry))
	nf.ID = f.ID
	if f.Properties != nil {
		nf.Properties = f.Properties.Clone()
	}
	if len(f.BBox) > 0 {
		nf.BBox = slices.Clone(f.BBox)
	}
	return nf
}
