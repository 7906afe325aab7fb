package session

import (
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"roadedit/internal/logging"
)

// ProjectVertices emits one point feature per vertex of every LineString
// feature in fc, in feature then vertex order. Other geometries are skipped.
func ProjectVertices(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out
	}
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		for _, p := range ls {
			out.Append(geojson.NewFeature(p))
		}
	}
	return out
}

type dataSetter interface {
	SetData(id string, fc *geojson.FeatureCollection) error
}

// Projector keeps a GeoJSON source in sync with the engine's vertices.
type Projector struct {
	engine Engine
	target dataSetter
	source string
	logger *slog.Logger
}

func NewProjector(engine Engine, target dataSetter, source string, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Projector{engine: engine, target: target, source: source, logger: logger}
}

// Refresh recomputes the whole point layer from the engine.
func (p *Projector) Refresh() {
	if p == nil || p.engine == nil || p.target == nil {
		return
	}
	points := ProjectVertices(p.engine.GetAll())
	if err := p.target.SetData(p.source, points); err != nil {
		p.logger.Warn("point layer refresh failed", "source", p.source, "err", err)
	}
}
