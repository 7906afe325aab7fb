package editor

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Click handles a pointer click at p; tol is the hit radius in degrees.
func (e *Engine) Click(p orb.Point, tol float64) {
	if e.detached {
		return
	}
	switch e.mode {
	case ModeSimpleSelect:
		e.clickSimple(p, tol)
	case ModeDirectSelect:
		e.clickDirect(p, tol)
	case ModeDrawLineString:
		e.clickDraw(p, tol)
	}
}

func (e *Engine) clickSimple(p orb.Point, tol float64) {
	id, ok := e.hitFeature(p, tol)
	if !ok {
		if len(e.selected) > 0 {
			e.selected = nil
			e.emitSelection()
		}
		return
	}
	if len(e.selected) == 1 && e.selected[0] == id {
		_ = e.ChangeMode(ModeDirectSelect, ModeOptions{FeatureID: id})
		return
	}
	e.selected = []string{id}
	e.emitSelection()
}

func (e *Engine) clickDirect(p orb.Point, tol float64) {
	ls, ok := e.directLine()
	if !ok {
		return
	}
	if idx, ok := hitVertex(ls, p, tol); ok {
		e.coords = []int{idx}
		e.emitSelection()
		return
	}
	if seg, ok := hitMidpoint(ls, p, tol); ok {
		mid := midpoint(ls[seg], ls[seg+1])
		e.setLine(slices.Insert(slices.Clone(ls), seg+1, mid))
		e.coords = []int{seg + 1}
		e.emitSelection()
		return
	}
	if planar.DistanceFrom(ls, p) <= tol {
		if len(e.coords) > 0 {
			e.coords = nil
			e.emitSelection()
		}
		return
	}
	e.mode, e.directID, e.coords, e.selected = ModeSimpleSelect, "", nil, nil
	e.emit(Event{Type: EventModeChange, Mode: e.mode})
	e.emitSelection()
}

func (e *Engine) clickDraw(p orb.Point, tol float64) {
	if e.drawing == nil {
		e.drawing = geojson.NewFeature(orb.LineString{p})
		e.render()
		return
	}
	ls := e.drawing.Geometry.(orb.LineString)
	if len(ls) >= 2 && planar.Distance(ls[len(ls)-1], p) <= tol {
		e.Finish()
		return
	}
	e.drawing.Geometry = append(ls, p)
	e.render()
}

// Press starts a vertex drag in direct_select and reports whether a vertex
// was grabbed.
func (e *Engine) Press(p orb.Point, tol float64) bool {
	ls, ok := e.directLine()
	if !ok {
		return false
	}
	idx, ok := hitVertex(ls, p, tol)
	if !ok {
		return false
	}
	e.drag, e.dragged = idx, false
	if !slices.Equal(e.coords, []int{idx}) {
		e.coords = []int{idx}
		e.emitSelection()
	}
	return true
}

// Drag moves the grabbed vertex to p and reports the move as a drag update;
// the final position is reported again on Release.
func (e *Engine) Drag(p orb.Point) {
	ls, ok := e.directLine()
	if !ok || e.drag < 0 || e.drag >= len(ls) {
		return
	}
	next := slices.Clone(ls)
	next[e.drag] = p
	i := e.indexOf(e.directID)
	e.features[i].Geometry = next
	e.dragged = true
	e.emit(Event{Type: EventUpdate, Features: []*geojson.Feature{cloneFeature(e.features[i])}, Action: ActionDrag})
}

// Release ends a drag; a moved vertex is reported as an update.
func (e *Engine) Release() {
	moved := e.dragged && e.drag >= 0
	e.drag, e.dragged = -1, false
	if !moved {
		return
	}
	if i := e.indexOf(e.directID); i >= 0 {
		e.emit(Event{Type: EventUpdate, Features: []*geojson.Feature{cloneFeature(e.features[i])}, Action: ActionChangeCoordinates})
	}
}

func (e *Engine) Dragging() bool { return e.drag >= 0 }

// Finish commits the line being drawn and returns to simple_select.
func (e *Engine) Finish() {
	if e.mode != ModeDrawLineString {
		return
	}
	_ = e.ChangeMode(ModeSimpleSelect, ModeOptions{})
}

// Cancel abandons the line being drawn and returns to simple_select.
func (e *Engine) Cancel() {
	if e.mode != ModeDrawLineString {
		return
	}
	e.drawing = nil
	_ = e.ChangeMode(ModeSimpleSelect, ModeOptions{})
}

// DrawingVertices is the number of vertices placed so far in draw mode.
func (e *Engine) DrawingVertices() int {
	if e.drawing == nil {
		return 0
	}
	return len(e.drawing.Geometry.(orb.LineString))
}

func (e *Engine) commitDrawing() {
	d := e.drawing
	e.drawing = nil
	if d == nil {
		return
	}
	ls := d.Geometry.(orb.LineString)
	if len(ls) < 2 {
		e.render()
		return
	}
	d.ID = e.newID()
	e.features = append(e.features, d)
	e.emit(Event{Type: EventCreate, Features: []*geojson.Feature{cloneFeature(d)}, Action: "draw"})
}

func (e *Engine) setLine(ls orb.LineString) {
	i := e.indexOf(e.directID)
	e.features[i].Geometry = ls
	e.emit(Event{Type: EventUpdate, Features: []*geojson.Feature{cloneFeature(e.features[i])}, Action: ActionChangeCoordinates})
}

// hitFeature returns the closest feature within tol, later features first
// on ties.
func (e *Engine) hitFeature(p orb.Point, tol float64) (string, bool) {
	best, bestID := tol, ""
	for i := len(e.features) - 1; i >= 0; i-- {
		f := e.features[i]
		if d := planar.DistanceFrom(f.Geometry, p); d <= best {
			if bestID == "" || d < best {
				best, bestID = d, FeatureID(f)
			}
		}
	}
	return bestID, bestID != ""
}

func hitVertex(ls orb.LineString, p orb.Point, tol float64) (int, bool) {
	best, idx := tol, -1
	for i, v := range ls {
		if d := planar.Distance(v, p); d <= best {
			best, idx = d, i
		}
	}
	return idx, idx >= 0
}

func hitMidpoint(ls orb.LineString, p orb.Point, tol float64) (int, bool) {
	best, seg := tol, -1
	for i := 0; i+1 < len(ls); i++ {
		if d := planar.Distance(midpoint(ls[i], ls[i+1]), p); d <= best {
			best, seg = d, i
		}
	}
	return seg, seg >= 0
}

func midpoint(a, b orb.Point) orb.Point {
	return orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
}
