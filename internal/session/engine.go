package session

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"roadedit/internal/editor"
)

// Engine is the vector editing engine the session drives. It owns the
// geometry and the selection; the session only reads it and issues commands.
type Engine interface {
	GetAll() *geojson.FeatureCollection
	Add(fc *geojson.FeatureCollection) []string
	Delete(ids ...string)
	ChangeMode(mode editor.Mode, opts editor.ModeOptions) error
	SelectedIDs() []string
	SelectedPoints() *geojson.FeatureCollection
	Trash()
	On(fn editor.Listener)
	AddTo(s editor.Surface) error
	Close()
}

// Surface is the map rendering surface the session draws onto.
type Surface interface {
	editor.Surface
	SetView(center orb.Point, zoom float64)
	FitBounds(b orb.Bound, padding int)
	OnLoad(fn func())
	Remove()
}
